// Package dbtest opens in-memory sqlite databases carrying the full schema.
package dbtest

import (
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	notificationDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/notification"
	taskDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/task"
	transferDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/transfer"
	userDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/user"
)

// Open returns gorm and sqlx handles sharing one sqlite connection, so that
// writes inside a transaction and reads outside it see the same data.
func Open() (*database.Handles, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&userDatamodel.User{},
		&userDatamodel.Permission{},
		&userDatamodel.UserPermission{},
		&transferDatamodel.TransferRequest{},
		&transferDatamodel.PermissionProfile{},
		&taskDatamodel.WorkflowTask{},
		&taskDatamodel.WorkflowTaskNote{},
		&taskDatamodel.ChecklistRunItem{},
		&taskDatamodel.ReviewInstance{},
		&notificationDatamodel.Notification{},
	)
	if err != nil {
		return nil, err
	}

	return &database.Handles{Gorm: db, SQLX: sqlx.NewDb(sqlDB, "sqlite3")}, nil
}

// SeedPerson inserts an employee and grants the named permissions.
func SeedPerson(db *gorm.DB, u *userDatamodel.User, permissions ...string) error {
	if err := db.Create(u).Error; err != nil {
		return err
	}
	for _, name := range permissions {
		perm := userDatamodel.Permission{Name: name}
		if err := db.Where(userDatamodel.Permission{Name: name}).FirstOrCreate(&perm).Error; err != nil {
			return err
		}
		if err := db.Create(&userDatamodel.UserPermission{UserID: u.ID, PermissionID: perm.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}
