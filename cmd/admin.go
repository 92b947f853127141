package cmd

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_supply_tool/app"
	"Gin_postgres_redis_supply_tool/db"

	"github.com/spf13/cobra"
)

var (
	seedDesignation string
	tokenTTL        time.Duration
)

// openRepo 只连数据库，不启动 Redis 与路由
func openRepo() (*db.Repo, app.Config, func(), error) {
	cfg := app.LoadConfig()
	conn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("database connection failed: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db.NewRepo(conn), cfg, closeFn, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _, closeFn, err := openRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		if err := db.Migrate(repo.DB); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin <username>",
	Short: "Create a user (or promote an existing one) as admin and print a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cfg, closeFn, err := openRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		if err := db.Migrate(repo.DB); err != nil {
			return err
		}
		u, token, err := app.SeedAdmin(context.Background(), cfg, repo, args[0], seedDesignation)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s)\ntoken: %s\n", u.Username, u.ID, token)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Print a bearer token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cfg, closeFn, err := openRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		u, err := repo.FindUserByUsername(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("user %s: %w", args[0], err)
		}
		token, err := app.IssueToken(cfg.JWTSecret, u.ID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedDesignation, "designation", "", "designation printed on RIS forms")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, tokenCmd)
}
