// Package cli holds the gmpctl commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gmpportal/internal/client"
	"gmpportal/internal/client/session"
)

type app struct {
	server        string
	storePath     string
	idle          time.Duration
	checkInterval time.Duration

	store   *session.BoltStorage
	tracker *session.Tracker
	api     *client.Client
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gmp-session.db"
	}
	return filepath.Join(dir, "gmpctl", "session.db")
}

// NewRootCommand builds the gmpctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gmpctl",
		Short:         "gmpctl is a command-line client for the GMP portal",
		Long:          `Log in to the GMP portal, inspect the cached session and watch it expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("GMP_SERVER", "http://localhost:3000"), "portal API base URL")
	flags.StringVar(&a.storePath, "store", envOr("GMP_SESSION_STORE", defaultStorePath()), "session store file")
	flags.DurationVar(&a.idle, "idle", session.DefaultIdle, "sliding session window")
	flags.DurationVar(&a.checkInterval, "check-interval", session.DefaultCheckInterval, "expiry check interval for watch")

	root.AddCommand(
		newLoginCommand(a),
		newRegisterCommand(a),
		newWhoamiCommand(a),
		newStatusCommand(a),
		newLogoutCommand(a),
		newWatchCommand(a),
	)
	return root
}

// Execute runs gmpctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// run opens the session store around fn so it is released even when fn fails.
func (a *app) run(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		if err := a.open(); err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd)
	}
}

func (a *app) open() error {
	if dir := filepath.Dir(a.storePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	store, err := session.OpenBoltStorage(a.storePath)
	if err != nil {
		return err
	}
	a.store = store
	a.tracker = session.NewTracker(store, session.WithIdle(a.idle))
	a.api = client.New(a.server, a.tracker)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
