package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
	authPostgres "github.com/frahmantamala/kitchen-ops/internal/auth/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
	"github.com/spf13/cobra"
)

var tokenUserID int64

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for an employee",
	Long:  `Sign an RS256 access token for an active employee. Requires security.jwt_private_key.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUserID <= 0 {
			return fmt.Errorf("--user-id is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Security.JWTPrivateKey == "" {
			return fmt.Errorf("security.jwt_private_key is not configured")
		}

		tokens, err := newTokenManager(cfg.Security)
		if err != nil {
			return err
		}
		handles, err := database.Open(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if err := handles.Close(); err != nil {
				log.Printf("database close error: %v", err)
			}
		}()

		token, err := auth.NewService(authPostgres.NewRepository(handles.SQLX), tokens).IssueToken(cmd.Context(), tokenUserID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "employee id the token is issued for")
}
