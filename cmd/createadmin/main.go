// Package main creates or updates a staff account that can log in to the admin endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/config"
	"github.com/aura-events/ticketing/internal/auth"
	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/database"
	"github.com/aura-events/ticketing/pkg/utils"
)

type options struct {
	username string
	email    string
	password string
	staff    bool
	inactive bool
}

var errHelp = errors.New("help requested")

func main() {
	if err := run(); err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "createadmin: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("createadmin", pflag.ContinueOnError)
	flagSet.StringVar(&opts.username, "username", "", "login name (required)")
	flagSet.StringVar(&opts.email, "email", "", "contact email (required)")
	flagSet.StringVar(&opts.password, "password", "", "password; falls back to ADMIN_PASSWORD")
	flagSet.BoolVar(&opts.staff, "staff", true, "grant access to the admin endpoints")
	flagSet.BoolVar(&opts.inactive, "inactive", false, "create the account disabled")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return opts, errHelp
		}
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	opts.username = strings.TrimSpace(opts.username)
	opts.email = strings.ToLower(strings.TrimSpace(opts.email))
	if opts.password == "" {
		opts.password = os.Getenv("ADMIN_PASSWORD")
	}
	switch {
	case opts.username == "":
		return opts, errors.New("--username is required")
	case opts.email == "":
		return opts, errors.New("--email is required")
	case len(opts.password) < utils.MinPasswordLength:
		return opts, utils.ErrWeakPassword
	}
	return opts, nil
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), zap.NewNop())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	hash, err := utils.HashPassword(opts.password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username: opts.username,
		Email:    opts.email,
		Password: hash,
		IsStaff:  opts.staff,
		IsActive: !opts.inactive,
	}
	if err := auth.NewRepository(pool).Upsert(ctx, user); err != nil {
		return err
	}
	fmt.Printf("saved user %s (id %s, staff=%t, active=%t)\n", user.Username, user.ID, user.IsStaff, user.IsActive)
	return nil
}
