// Command admin is the operator CLI: database migrations, invite code
// issuing, and user listings, run directly against the database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	dbembed "github.com/fieldops/reportbot/db"
	"github.com/fieldops/reportbot/internal/config"
	"github.com/fieldops/reportbot/internal/db"
	"github.com/fieldops/reportbot/internal/invite"
	"github.com/fieldops/reportbot/internal/logger"
	"github.com/fieldops/reportbot/internal/users"
	"github.com/fieldops/reportbot/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "admin",
		Short:         "reportbot operator tooling",
		Version:       version.GetInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = config.DefaultConfigPath
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to config.toml")

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		return cfg, nil
	}

	root.AddCommand(newMigrateCmd(loadConfig))
	root.AddCommand(newInviteCmd(loadConfig))
	root.AddCommand(newUsersCmd(loadConfig))
	return root
}

func newMigrateCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version|force]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"up", "down", "version", "force"},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return db.RunMigrate(logger.L, cfg.Postgres, dbembed.MigrationsFS, args[0], args[1:])
		},
	}
	return cmd
}

func newInviteCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	invite_ := &cobra.Command{
		Use:   "invite",
		Short: "Manage invite codes",
	}

	var role string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a single-use registration invite code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case users.RoleStaff, users.RoleManager, users.RoleAdmin:
			default:
				return fmt.Errorf("unknown role: %s (use staff, manager, or admin)", role)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ttl, err := time.ParseDuration(cfg.Auth.InviteTTL)
			if err != nil {
				return fmt.Errorf("parse invite ttl: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			pool, err := db.Open(ctx, cfg.Postgres)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			code, err := invite.NewService(logger.L, pool, cfg.Auth.InviteSecret, ttl).Issue(ctx, role)
			if err != nil {
				return err
			}
			fmt.Printf("Invite code (role %s, valid %s):\n%s\n", role, cfg.Auth.InviteTTL, code)
			return nil
		},
	}
	issue.Flags().StringVar(&role, "role", users.RoleStaff, "role the code grants: staff, manager, admin")
	invite_.AddCommand(issue)
	return invite_
}

func newUsersCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage registered users",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			pool, err := db.Open(ctx, cfg.Postgres)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			items, err := users.NewService(logger.L, pool).List(ctx)
			if err != nil {
				return err
			}
			for _, u := range items {
				status := "active"
				if !u.IsActive {
					status = "inactive"
				}
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
					u.ID, u.Name, u.Role, u.Position, u.OrgName, status)
			}
			fmt.Printf("%d user(s)\n", len(items))
			return nil
		},
	}
	usersCmd.AddCommand(list)
	return usersCmd
}
