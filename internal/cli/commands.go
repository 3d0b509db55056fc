package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gmpportal/internal/client/session"
)

func readPassword(cmd *cobra.Command, flagValue string, fromStdin bool) (string, error) {
	if !fromStdin {
		if flagValue == "" {
			return "", errors.New("--password or --password-stdin is required")
		}
		return flagValue, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(a *app) *cobra.Command {
	var (
		email, password string
		passwordStdin   bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and cache the session",
		RunE: a.run(func(cmd *cobra.Command) error {
			pw, err := readPassword(cmd, password, passwordStdin)
			if err != nil {
				return err
			}
			s, err := a.api.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s), session expires %s\n",
				s.User.Email, s.User.Role, s.ExpiresAt.Local().Format("15:04:05"))
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var (
		name, email, password string
		passwordStdin         bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a STUDENT account and cache the session",
		RunE: a.run(func(cmd *cobra.Command) error {
			pw, err := readPassword(cmd, password, passwordStdin)
			if err != nil {
				return err
			}
			s, err := a.api.Register(cmd.Context(), name, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", s.User.Email, s.User.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Ask the server who the cached token belongs to",
		RunE: a.run(func(cmd *cobra.Command) error {
			u, err := a.api.Me(cmd.Context())
			if err != nil {
				return notLoggedIn(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", u.Name, u.Email, u.Role)
			return nil
		}),
	}
}

func newStatusCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached session",
		RunE: a.run(func(cmd *cobra.Command) error {
			out := cmd.OutOrStdout()
			s, err := a.tracker.Check()
			if err != nil {
				fmt.Fprintln(out, "unauthenticated")
				return nil
			}
			fmt.Fprintf(out, "authenticated as %s (%s)\nsession %s\nlast activity %s\nexpires %s\n",
				s.User.Email, s.User.Role, s.SessionID,
				s.LastActivity.Local().Format("15:04:05"), s.ExpiresAt.Local().Format("15:04:05"))
			if s.IsAdmin() {
				fmt.Fprintln(out, "admin views available")
			}
			if !remote {
				return nil
			}
			v, err := a.api.Validate(cmd.Context())
			if err != nil {
				return notLoggedIn(err)
			}
			fmt.Fprintf(out, "server accepts token until %s\n", v.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also validate the token with the server")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and clear the cached session",
		RunE: a.run(func(cmd *cobra.Command) error {
			if err := a.api.Logout(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: server logout failed:", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay in the foreground until the session expires",
		RunE: a.run(func(cmd *cobra.Command) error {
			out := cmd.OutOrStdout()
			if _, err := a.tracker.Check(); err != nil {
				fmt.Fprintln(out, "unauthenticated")
				return nil
			}
			return a.tracker.Run(cmd.Context(), a.checkInterval, func(s session.Session) {
				fmt.Fprintf(out, "session for %s expired\n", s.User.Email)
				if s.IsAdmin() {
					fmt.Fprintln(out, "leaving admin view")
				}
			})
		}),
	}
}

func notLoggedIn(err error) error {
	if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrExpired) {
		return errors.New("not logged in")
	}
	return err
}
