/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatehouse-hq/apiserver/config"
	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/db"
	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/internal/store"
)

// seedCmd bootstraps the first admin account from SEED_ADMIN_* env vars.
// The first admin registered becomes the super admin, so running this
// against an empty database yields a fully privileged bootstrap account.
// Re-running against a seeded database is a no-op.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bootstrap the initial admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		email := os.Getenv("SEED_ADMIN_EMAIL")
		password := os.Getenv("SEED_ADMIN_PASSWORD")
		name := os.Getenv("SEED_ADMIN_NAME")
		if email == "" || password == "" || name == "" {
			return errors.New("SEED_ADMIN_EMAIL, SEED_ADMIN_PASSWORD and SEED_ADMIN_NAME are required")
		}

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		accounts := services.NewAccountService(
			store.NewAccountRepository(dbConn),
			store.NewAdminRepository(dbConn),
			store.NewEmployeeRepository(dbConn),
			store.NewVisitorRepository(dbConn),
			store.NewSessionRepository(dbConn),
			logger,
		)

		admin, err := accounts.RegisterAdmin(cmd.Context(), email, password, name)
		if err != nil {
			if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.KindConflict {
				fmt.Println("admin account already exists, nothing to do")
				return nil
			}
			return err
		}

		fmt.Printf("admin created: %s (super admin: %t)\n", admin.ID, admin.IsSuperAdmin)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
