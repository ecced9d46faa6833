package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/config"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
)

const requestTimeout = 15 * time.Second

var (
	registerUsername string
	registerEmail    string
)

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a leaderboard account and log in",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	cmd.Flags().StringVar(&registerUsername, "username", "", "username (3-24 letters or digits)")
	cmd.Flags().StringVar(&registerEmail, "email", "", "email address")
	return cmd
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()
	username, err := promptIfEmpty(in, out, registerUsername, "Username: ")
	if err != nil {
		return err
	}
	email, err := promptIfEmpty(in, out, registerEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := readPassword(in, out, "Password: ")
	if err != nil {
		return err
	}

	server, err := accountServer()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	sess, err := leaderboard.NewClient(server, "").Register(ctx, auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return describe(err)
	}
	if err := storeSession(server, sess); err != nil {
		return err
	}
	return printf(cmd.OutOrStdout(), "Registered and logged in as %s\n", sess.User.Username)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username-or-email]",
		Short: "Log in to the leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLoginCmd,
	}
}

func runLoginCmd(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()
	login := ""
	if len(args) == 1 {
		login = args[0]
	}
	login, err := promptIfEmpty(in, out, login, "Username or email: ")
	if err != nil {
		return err
	}
	password, err := readPassword(in, out, "Password: ")
	if err != nil {
		return err
	}

	server, err := accountServer()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	sess, err := leaderboard.NewClient(server, "").Login(ctx, auth.LoginRequest{Login: login, Password: password})
	if err != nil {
		return describe(err)
	}
	if err := storeSession(server, sess); err != nil {
		return err
	}
	return printf(cmd.OutOrStdout(), "Logged in as %s\n", sess.User.Username)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored leaderboard credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.RemoveCredentials(config.DefaultCredentialsPath()); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			return printf(cmd.OutOrStdout(), "Logged out\n")
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in leaderboard account",
		Args:  cobra.NoArgs,
		RunE:  runWhoamiCmd,
	}
}

func runWhoamiCmd(cmd *cobra.Command, _ []string) error {
	creds, ok, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if !ok || creds.Token == "" {
		return printf(cmd.OutOrStdout(), "Not logged in\n")
	}
	server, err := accountServer()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	id, err := leaderboard.NewClient(server, creds.Token).Me(ctx)
	if err != nil {
		return describe(err)
	}
	return printf(cmd.OutOrStdout(), "%s (%s)\n", id.Username, server)
}

// accountServer resolves the server for account commands, which need one.
func accountServer() (string, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	creds, _, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	server := resolveServer(fileCfg, creds)
	if server == "" {
		return "", fmt.Errorf("no leaderboard server configured (use --server or set [leaderboard] url)")
	}
	return server, nil
}

func storeSession(server string, sess auth.Session) error {
	err := config.SaveCredentials(config.DefaultCredentialsPath(), config.Credentials{
		Server:   server,
		Token:    sess.Token,
		UserID:   sess.User.UserID,
		Username: sess.User.Username,
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func promptIfEmpty(in *bufio.Reader, out io.Writer, value, prompt string) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}
	if err := printf(out, "%s", prompt); err != nil {
		return "", err
	}
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptIfEmpty(in, out, "", prompt)
	}
	if err := printf(out, "%s", prompt); err != nil {
		return "", err
	}
	b, err := term.ReadPassword(fd)
	_ = printf(out, "\n")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// describe flattens server validation errors into one message.
func describe(err error) error {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || len(appErr.Fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(appErr.Fields))
	for field, msg := range appErr.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return fmt.Errorf("%s (%s)", appErr.Message, strings.Join(parts, "; "))
}
