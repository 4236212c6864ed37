package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adeilh/emergency-backend/auth"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/internal/app"
	"github.com/adeilh/emergency-backend/internal/config"
	"github.com/adeilh/emergency-backend/internal/push"
	"github.com/adeilh/emergency-backend/model"
)

const closeTimeout = 10 * time.Second

// flagKeys maps config keys to the command flags that override them.
var flagKeys = map[string]string{
	"server.address":  "address",
	"database.driver": "driver",
	"database.dsn":    "dsn",
	"log.level":       "log-level",
}

type configLoader func(*cobra.Command) (config.Config, error)

func newRootCmd() *cobra.Command {
	var cfgFile string

	loadConfig := func(cmd *cobra.Command) (config.Config, error) {
		v, err := config.New(cfgFile)
		if err != nil {
			return config.Config{}, err
		}
		for key, flag := range flagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return config.Config{}, err
				}
			}
		}
		return config.Load(v)
	}

	root := &cobra.Command{
		Use:           "emergencyd",
		Short:         "Emergency incident reporting API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env: EMERGENCY_*)")

	root.AddCommand(
		serveCmd(loadConfig),
		migrateCmd(loadConfig),
		createAdminCmd(loadConfig),
		healthcheckCmd(),
		vapidKeysCmd(),
	)
	return root
}

func serveCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("address", "", "listen address (server.address)")
	cmd.Flags().String("log-level", "", "debug, info, warn, error or off (log.level)")
	storeFlags(cmd)
	return cmd
}

func storeFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", "", "postgres or mongo (database.driver)")
	cmd.Flags().String("dsn", "", "database connection string (database.dsn)")
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = a.Close(ctx)
}

func migrateCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes in the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Database.Driver)
			return nil
		},
	}
	storeFlags(cmd)
	return cmd
}

func createAdminCmd(load configLoader) *cobra.Command {
	var username, password, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			svc, err := app.NewAuth(cfg.Auth, store)
			if err != nil {
				return err
			}
			u, err := svc.Register(ctx, auth.Registration{
				Username: username,
				Password: password,
				Email:    email,
				Role:     model.RoleAdmin,
			})
			if errors.Is(err, auth.ErrUserExists) {
				return fmt.Errorf("user %q already exists", username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	storeFlags(cmd)
	return cmd
}

func healthcheckCmd() *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Query the health endpoint of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := httpx.NewClient(httpx.WithBaseURL(url), httpx.WithClientTimeout(timeout))
			var body struct {
				Status   string            `json:"status"`
				Services map[string]string `json:"services"`
				Version  string            `json:"version"`
			}
			_, err := client.Get(cmd.Context(), "/api/health", &body)
			var apiErr *httpx.APIError
			switch {
			case errors.As(err, &apiErr) && apiErr.Status == httpx.StatusServiceUnavailable:
				if jerr := json.Unmarshal(apiErr.Body, &body); jerr != nil {
					return fmt.Errorf("healthcheck: %w", err)
				}
			case err != nil:
				return fmt.Errorf("healthcheck: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s database=%s version=%s\n", body.Status, body.Services["database"], body.Version)
			if body.Status != "healthy" {
				return fmt.Errorf("healthcheck: status %s", body.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8001", "base URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := push.GenerateKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "EMERGENCY_PUSH_VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "EMERGENCY_PUSH_VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
