package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	transferDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/transfer"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
)

// ProfileRepository stores per-employee transfer permission profiles.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, employeeID int64) (*transfer.PermissionProfile, error) {
	var row transferDatamodel.PermissionProfile
	err := database.Conn(ctx, r.db).Where("employee_id = ?", employeeID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transfer.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get permission profile: %w", err)
	}
	return profileFromRow(&row), nil
}

// Upsert inserts or replaces the profile keyed by employee id.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *transfer.PermissionProfile) error {
	row := profileToRow(profile)
	err := database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"department_restrictions",
			"max_transfers_per_day",
			"requires_approval",
			"updated_by",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert permission profile: %w", err)
	}
	profile.UpdatedAt = row.UpdatedAt
	return nil
}

// InsertMissing creates profiles for employees that have none and reports how many rows were written.
func (r *ProfileRepository) InsertMissing(ctx context.Context, profiles []transfer.PermissionProfile) (int64, error) {
	if len(profiles) == 0 {
		return 0, nil
	}
	rows := make([]*transferDatamodel.PermissionProfile, 0, len(profiles))
	for i := range profiles {
		rows = append(rows, profileToRow(&profiles[i]))
	}
	res := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "employee_id"}}, DoNothing: true}).
		CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("bootstrap permission profiles: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func profileToRow(p *transfer.PermissionProfile) *transferDatamodel.PermissionProfile {
	restrictions := p.DepartmentRestrictions
	if restrictions == nil {
		restrictions = []string{}
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return &transferDatamodel.PermissionProfile{
		EmployeeID:             p.EmployeeID,
		DepartmentRestrictions: restrictions,
		MaxTransfersPerDay:     p.MaxTransfersPerDay,
		RequiresApproval:       p.RequiresApproval,
		UpdatedBy:              p.UpdatedBy,
		CreatedAt:              updatedAt,
		UpdatedAt:              updatedAt,
	}
}

func profileFromRow(row *transferDatamodel.PermissionProfile) *transfer.PermissionProfile {
	restrictions := []string(row.DepartmentRestrictions)
	if restrictions == nil {
		restrictions = []string{}
	}
	return &transfer.PermissionProfile{
		EmployeeID:             row.EmployeeID,
		DepartmentRestrictions: restrictions,
		MaxTransfersPerDay:     row.MaxTransfersPerDay,
		RequiresApproval:       row.RequiresApproval,
		UpdatedBy:              row.UpdatedBy,
		UpdatedAt:              row.UpdatedAt.UTC(),
	}
}
