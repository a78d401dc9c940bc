package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/openprocure/tenderd/internal/adapter/postgres"
	"github.com/openprocure/tenderd/internal/config"
	"github.com/openprocure/tenderd/internal/service"
)

// runAdmin dispatches admin subcommands (bootstrap, create-key, list-keys).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "bootstrap":
		return runAdminBootstrap(args[1:])
	case "create-key":
		return runAdminCreateKey(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tenderd admin <command> [options]

Commands:
  bootstrap    Create the initial admin user and API key
  create-key   Issue a new API key for an existing user
  help         Show this help message

Examples:
  tenderd admin bootstrap --email admin@example.com --name "Admin"
  tenderd admin create-key --user <user-id> --name ci
`)
}

func loadAdminDeps() (*service.AuthService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	authSvc := service.NewAuthService(store)

	cleanup := func() {
		pool.Close()
	}
	return authSvc, cleanup, nil
}

func runAdminBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	email := fs.String("email", "", "admin email address (required)")
	name := fs.String("name", "Admin", "admin display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	authSvc, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	u, key, err := authSvc.BootstrapAdmin(ctx, *email, *name)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Admin created: %s (id=%s)\n", u.Email, u.ID)
	printPlainKey(key.PlainKey)
	return nil
}

func runAdminCreateKey(args []string) error {
	fs := flag.NewFlagSet("create-key", flag.ContinueOnError)
	userID := fs.String("user", "", "user ID (required)")
	name := fs.String("name", "default", "key name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	authSvc, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	key, err := authSvc.CreateAPIKey(ctx, *userID, *name)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPREFIX")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", key.APIKey.ID, key.APIKey.Name, key.APIKey.Prefix)
	_ = w.Flush()
	printPlainKey(key.PlainKey)
	return nil
}

// printPlainKey shows the one-time plaintext key. On a terminal it warns
// first, since the key cannot be recovered later.
func printPlainKey(plainKey string) {
	if term.IsTerminal(int(syscall.Stdout)) {
		fmt.Fprintln(os.Stderr, "Store this key now; it will not be shown again.")
	}
	fmt.Println(plainKey)
}
