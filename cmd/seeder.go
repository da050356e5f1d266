package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
	authPostgres "github.com/frahmantamala/kitchen-ops/internal/auth/postgres"
	taskDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/task"
	transferDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/transfer"
	userDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/user"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
	staffPostgres "github.com/frahmantamala/kitchen-ops/internal/staff/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample staff, tasks and transfer permission profiles for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		deps, err := initializeDependencies(ctx)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.close(ctx)
		db := deps.DB.Gorm

		if clearData {
			if err := clearSeedData(db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{staff.PermissionAdmin, "full administrator"},
			{staff.PermissionApproveTransfers, "Can approve task transfers"},
			{staff.PermissionManageTransfers, "Can edit transfer permission profiles"},
		}
		for _, p := range permissions {
			perm := userDatamodel.Permission{Name: p.Name, Description: p.Desc}
			if err := db.Where(userDatamodel.Permission{Name: p.Name}).FirstOrCreate(&perm).Error; err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Name, err)
			}
		}

		people := []struct {
			user  userDatamodel.User
			perms []string
		}{
			{userDatamodel.User{Email: "admin@kitchen.local", Name: "Ops Admin", Department: "Management", Role: staff.RoleAdmin}, []string{staff.PermissionAdmin, staff.PermissionManageTransfers}},
			{userDatamodel.User{Email: "manager@kitchen.local", Name: "Maya Manager", Department: "Management", Role: staff.RoleManager}, []string{staff.PermissionApproveTransfers}},
			{userDatamodel.User{Email: "ana@kitchen.local", Name: "Ana Line Cook", Department: "BOH", Role: "cook"}, nil},
			{userDatamodel.User{Email: "ben@kitchen.local", Name: "Ben Prep Cook", Department: "BOH", Role: "cook"}, nil},
			{userDatamodel.User{Email: "cara@kitchen.local", Name: "Cara Server", Department: "FOH", Role: "server"}, nil},
		}

		ids := make(map[string]int64, len(people))
		for _, p := range people {
			u := p.user
			u.IsActive = true
			if err := db.Where(userDatamodel.User{Email: u.Email}).FirstOrCreate(&u).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			ids[u.Email] = u.ID
			for _, name := range p.perms {
				if err := grantPermission(db, u.ID, name); err != nil {
					log.Fatalf("failed to grant %s to %s: %v", name, u.Email, err)
				}
			}
			fmt.Println("Seeded user:", u.Email)
		}

		ana, ben, cara := ids["ana@kitchen.local"], ids["ben@kitchen.local"], ids["cara@kitchen.local"]
		workflow := []taskDatamodel.WorkflowTask{
			{ID: "wt-prep-001", Title: "Prep mise en place", AssigneeID: &ana, Status: "open"},
			{ID: "wt-grill-002", Title: "Deep clean grill", AssigneeID: &ana, Status: "open"},
			{ID: "wt-stock-003", Title: "Count dry storage", AssigneeID: &ben, Status: "open"},
		}
		for _, t := range workflow {
			if err := db.Where(taskDatamodel.WorkflowTask{ID: t.ID}).FirstOrCreate(&t).Error; err != nil {
				log.Fatalf("failed to insert workflow task %s: %v", t.ID, err)
			}
		}
		checklist := []taskDatamodel.ChecklistRunItem{
			{ID: "ci-open-001", RunID: "run-opening", Label: "Walk-in temperature", AssigneeID: &ana},
			{ID: "ci-open-002", RunID: "run-opening", Label: "Sanitizer buckets", AssigneeID: &cara},
		}
		for _, c := range checklist {
			if err := db.Where(taskDatamodel.ChecklistRunItem{ID: c.ID}).FirstOrCreate(&c).Error; err != nil {
				log.Fatalf("failed to insert checklist item %s: %v", c.ID, err)
			}
		}
		review := taskDatamodel.ReviewInstance{ID: "rv-line-001", Title: "Line check review", ResponsibleEmployeeID: &ben}
		if err := db.Where(taskDatamodel.ReviewInstance{ID: review.ID}).FirstOrCreate(&review).Error; err != nil {
			log.Fatalf("failed to insert review %s: %v", review.ID, err)
		}
		fmt.Println("Seeded workflow tasks, checklist items and reviews")

		staffService := staff.NewService(staffPostgres.NewStaffRepository(deps.DB.SQLX))
		transferService, err := newTransferService(deps, staffService)
		if err != nil {
			log.Fatalf("failed to build transfer service: %v", err)
		}
		created, err := transferService.BootstrapPermissions(ctx, []transfer.PermissionProfile{
			{EmployeeID: ana, MaxTransfersPerDay: 3, RequiresApproval: false, DepartmentRestrictions: []string{"BOH"}},
			{EmployeeID: ben, MaxTransfersPerDay: 5, RequiresApproval: true, DepartmentRestrictions: []string{}},
			{EmployeeID: cara, MaxTransfersPerDay: 2, RequiresApproval: true, DepartmentRestrictions: []string{"FOH", "BOH"}},
		})
		if err != nil {
			log.Fatalf("failed to bootstrap permission profiles: %v", err)
		}
		fmt.Printf("Bootstrapped %d transfer permission profiles\n", created)

		if deps.Config.Security.JWTPrivateKey == "" {
			return
		}
		tokens, err := newTokenManager(deps.Config.Security)
		if err != nil {
			log.Fatalf("failed to load signing key: %v", err)
		}
		authService := auth.NewService(authPostgres.NewRepository(deps.DB.SQLX), tokens)
		for _, p := range people {
			token, err := authService.IssueToken(ctx, ids[p.user.Email])
			if err != nil {
				log.Fatalf("failed to issue token for %s: %v", p.user.Email, err)
			}
			fmt.Printf("%s (id %s): %s\n", p.user.Email, strconv.FormatInt(ids[p.user.Email], 10), token)
		}
	},
}

func grantPermission(db *gorm.DB, userID int64, name string) error {
	var perm userDatamodel.Permission
	if err := db.Where("name = ?", name).First(&perm).Error; err != nil {
		return err
	}
	grant := userDatamodel.UserPermission{UserID: userID, PermissionID: perm.ID}
	return db.Where(userDatamodel.UserPermission{UserID: userID, PermissionID: perm.ID}).FirstOrCreate(&grant).Error
}

func clearSeedData(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		models := []any{
			&transferDatamodel.TransferRequest{},
			&transferDatamodel.PermissionProfile{},
			&taskDatamodel.WorkflowTaskNote{},
			&taskDatamodel.WorkflowTask{},
			&taskDatamodel.ChecklistRunItem{},
			&taskDatamodel.ReviewInstance{},
		}
		for _, m := range models {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
