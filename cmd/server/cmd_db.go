package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maryannartillero/POS-namon/internal/config"
	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/httpapi"
	"github.com/maryannartillero/POS-namon/internal/store"
	pgstore "github.com/maryannartillero/POS-namon/internal/store/postgres"
	"github.com/maryannartillero/POS-namon/internal/xid"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

func openPostgres(ctx context.Context) (*pgstore.Store, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	return pgstore.New(ctx, cfg.DatabaseURL)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(contextOf(cmd), time.Minute)
			defer cancel()

			pg, err := openPostgres(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

type createUserInput struct {
	username string
	password string
	fullName string
}

func (in createUserInput) account(now time.Time) (domain.UserAccount, error) {
	username := strings.ToLower(strings.TrimSpace(in.username))
	if len(username) < 4 || strings.ContainsAny(username, " \t\r\n") {
		return domain.UserAccount{}, errors.New("username must be at least 4 characters without spaces")
	}
	if len(in.password) < 8 {
		return domain.UserAccount{}, errors.New("password must be at least 8 characters")
	}
	hash, err := httpapi.HashPassword(in.password)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}
	return domain.UserAccount{
		ID:        xid.New("usr"),
		Username:  username,
		Password:  hash,
		FullName:  strings.TrimSpace(in.fullName),
		Active:    true,
		CreatedAt: now,
	}, nil
}

func newCreateUserCmd() *cobra.Command {
	var in createUserInput
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a back office account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := in.account(time.Now().UTC())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(contextOf(cmd), 30*time.Second)
			defer cancel()
			pg, err := openPostgres(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.CreateUser(ctx, user); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("username %q already exists", user.Username)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.username, "username", "", "login name")
	cmd.Flags().StringVar(&in.password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.fullName, "full-name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
