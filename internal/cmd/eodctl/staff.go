package eodctl

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/watchdogpolska/small-eod/internal/services/admin"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
)

func staffCmd(cfg *Config) *cobra.Command {
	c := &cobra.Command{
		Use:   "staff",
		Short: "Manage admin staff accounts",
	}
	c.AddCommand(staffCreateCmd(cfg))
	return c
}

func staffCreateCmd(cfg *Config) *cobra.Command {
	var username, password string
	var superuser, inactive bool
	var perms []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or replace a staff account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			hash, err := admin.HashPassword(password)
			if err != nil {
				return err
			}
			store, err := admin.OpenAdminStore(cfg.AdminDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.PutStaff(cmd.Context(), adminstorage.Staff{
				Username:     username,
				PasswordHash: hash,
				Superuser:    superuser,
				Active:       !inactive,
				Permissions:  perms,
			})
			if err != nil {
				return fmt.Errorf("put staff: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staff %s saved\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant every permission")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account disabled")
	cmd.Flags().StringArrayVar(&perms, "perm", nil, "permission codename such as change_letter (repeatable)")
	return cmd
}

func migrateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade both databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caseStore, err := admin.OpenCaseStore(cfg.DBPath)
			if err != nil {
				return err
			}
			if err := caseStore.Close(); err != nil {
				return fmt.Errorf("close case store: %w", err)
			}
			adminStore, err := admin.OpenAdminStore(cfg.AdminDBPath)
			if err != nil {
				return err
			}
			if err := adminStore.Close(); err != nil {
				return fmt.Errorf("close admin store: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
