package task

import "time"

type WorkflowTask struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Title      string    `gorm:"column:title;not null"`
	AssigneeID *int64    `gorm:"column:assignee_id"`
	Status     string    `gorm:"column:status;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (WorkflowTask) TableName() string { return "workflow_tasks" }

// WorkflowTaskNote is an append-only audit trail entry on a workflow task.
type WorkflowTaskNote struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID    string    `gorm:"column:task_id;not null;index"`
	AuthorID  *int64    `gorm:"column:author_id"`
	Body      string    `gorm:"column:body;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (WorkflowTaskNote) TableName() string { return "workflow_task_notes" }

type ChecklistRunItem struct {
	ID         string    `gorm:"column:id;primaryKey"`
	RunID      string    `gorm:"column:run_id;not null;index"`
	Label      string    `gorm:"column:label;not null"`
	AssigneeID *int64    `gorm:"column:assignee_id"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (ChecklistRunItem) TableName() string { return "checklist_run_items" }

type ReviewInstance struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	Title                 string    `gorm:"column:title;not null"`
	ResponsibleEmployeeID *int64    `gorm:"column:responsible_employee_id"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (ReviewInstance) TableName() string { return "review_instances" }
