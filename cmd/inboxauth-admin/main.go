package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/commandcenter/inboxauth/config"
	"github.com/commandcenter/inboxauth/internal/bootstrap"
	"github.com/commandcenter/inboxauth/internal/data"
	"github.com/commandcenter/inboxauth/internal/migrate"
	"github.com/commandcenter/inboxauth/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger(slog.LevelInfo)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"migrate-status": {
			name:        "migrate-status",
			description: "List embedded migrations and whether each has been applied",
			run:         runMigrateStatus,
		},
		"accounts-count": {
			name:        "accounts-count",
			description: "Print the number of connected provider accounts",
			run:         runAccountsCount,
		},
		"sessions-purge": {
			name:        "sessions-purge",
			description: "Delete expired sessions from the configured session store",
			run:         runSessionsPurge,
		},
		"sessions-revoke": {
			name:        "sessions-revoke",
			description: "Revoke a single session by token",
			run:         runSessionsRevoke,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: inboxauth-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, commands()[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(name string, args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := connectDB(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := migrate.RunWithLogger(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("database migrations complete")
	return nil
}

func runMigrateStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate-status", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := connectDB(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	versions, err := migrate.Versions()
	if err != nil {
		return err
	}
	applied, err := migrate.Applied(ctx, db)
	if err != nil {
		return err
	}
	return renderMigrationStatus(cmdCtx.Out, versions, applied)
}

func renderMigrationStatus(w io.Writer, versions, applied []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "VERSION\tSTATUS\n"); err != nil {
		return err
	}
	for _, v := range versions {
		status := "pending"
		if slices.Contains(applied, v) {
			status = "applied"
		}
		if err := writef(tw, "%s\t%s\n", v, status); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runAccountsCount(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	n, err := data.NewAccountRepo(db, data.AccountRepoOptions{}).CountAccounts(ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "%d\n", n)
}

func runSessionsPurge(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	sessions, closeFn, err := openSessionService(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("expired sessions purged", "count", n, "store", cmdCtx.Config.Session.Store)
	return writef(cmdCtx.Out, "purged %d expired sessions\n", n)
}

type revokeOptions struct {
	Token string
}

func parseRevokeFlags(args []string) (revokeOptions, error) {
	fs := flag.NewFlagSet("sessions-revoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts revokeOptions
	fs.StringVar(&opts.Token, "token", "", "Session token to revoke")
	if err := fs.Parse(args); err != nil {
		return revokeOptions{}, err
	}
	if opts.Token == "" {
		return revokeOptions{}, errors.New("--token is required")
	}
	return opts, nil
}

func runSessionsRevoke(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	sessions, closeFn, err := openSessionService(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := sessions.Revoke(ctx, opts.Token); err != nil {
		return err
	}
	return writef(cmdCtx.Out, "session revoked\n")
}

func openSessionService(ctx context.Context, cmdCtx *commandContext) (*service.SessionService, func(), error) {
	infra, err := connectInfra(ctx, cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if cerr := infra.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}

	store, err := bootstrap.BuildSessionStore(cmdCtx.Config.Session, infra.DB, infra.Redis)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:  store,
		Users:  data.NewAccountRepo(infra.DB, data.AccountRepoOptions{}),
		TTL:    cmdCtx.Config.Session.TTL,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return sessions, closeFn, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
