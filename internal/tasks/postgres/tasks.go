package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	taskDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/task"
	"github.com/frahmantamala/kitchen-ops/internal/tasks"
)

// WorkflowTaskRepository reassigns workflow tasks and records an audit note.
type WorkflowTaskRepository struct {
	db *gorm.DB
}

func NewWorkflowTaskRepository(db *gorm.DB) *WorkflowTaskRepository {
	return &WorkflowTaskRepository{db: db}
}

func (r *WorkflowTaskRepository) Reassign(ctx context.Context, re tasks.Reassignment) error {
	return database.WithinTransaction(ctx, r.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, r.db)
		now := time.Now().UTC()

		res := conn.Model(&taskDatamodel.WorkflowTask{}).
			Where("id = ?", re.TaskID).
			Updates(map[string]interface{}{
				"assignee_id": re.NewOwner,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("reassign workflow task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("workflow task %s: %w", re.TaskID, tasks.ErrTaskNotFound)
		}

		note := &taskDatamodel.WorkflowTaskNote{
			TaskID:    re.TaskID,
			AuthorID:  &re.OldOwner,
			Body:      tasks.AuditNote(re),
			CreatedAt: now,
		}
		if err := conn.Create(note).Error; err != nil {
			return fmt.Errorf("append workflow task note: %w", err)
		}
		return nil
	})
}

// ChecklistItemRepository reassigns a checklist item within its run.
type ChecklistItemRepository struct {
	db *gorm.DB
}

func NewChecklistItemRepository(db *gorm.DB) *ChecklistItemRepository {
	return &ChecklistItemRepository{db: db}
}

func (r *ChecklistItemRepository) Reassign(ctx context.Context, re tasks.Reassignment) error {
	query := database.Conn(ctx, r.db).Model(&taskDatamodel.ChecklistRunItem{}).Where("id = ?", re.TaskID)
	if runID, ok := tasks.ChecklistRunID(re.Metadata); ok {
		query = query.Where("run_id = ?", runID)
	}

	res := query.Updates(map[string]interface{}{
		"assignee_id": re.NewOwner,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("reassign checklist item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("checklist item %s: %w", re.TaskID, tasks.ErrTaskNotFound)
	}
	return nil
}

// ReviewInstanceRepository moves responsibility for a review.
type ReviewInstanceRepository struct {
	db *gorm.DB
}

func NewReviewInstanceRepository(db *gorm.DB) *ReviewInstanceRepository {
	return &ReviewInstanceRepository{db: db}
}

func (r *ReviewInstanceRepository) Reassign(ctx context.Context, re tasks.Reassignment) error {
	res := database.Conn(ctx, r.db).Model(&taskDatamodel.ReviewInstance{}).
		Where("id = ?", re.TaskID).
		Updates(map[string]interface{}{
			"responsible_employee_id": re.NewOwner,
			"updated_at":              time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("reassign review: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review %s: %w", re.TaskID, tasks.ErrTaskNotFound)
	}
	return nil
}
