package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/auth"
	"github.com/sadopc/attendr/internal/crosstab"
)

var (
	loginUsername      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the time service",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out in every attendr window",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, password := loginUsername, ""
	if loginPasswordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if username == "" || password == "" {
		if err := promptCredentials(&username, &password); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := openEnv(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	rec, err := env.auth.Login(cmd.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return errors.New("invalid username or password")
	}
	if err != nil {
		return err
	}
	sync := env.synchronizer(crosstab.Hooks{})
	if err := sync.Login(cmd.Context(), *rec); err != nil {
		// stored but not broadcast; other windows pick it up on restart
		env.log.Warn("announcing login", zap.Error(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", rec.User.Name)
	return nil
}

func promptCredentials(username, password *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(username).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).
				Validate(huh.ValidateNotEmpty()),
		).Title("Sign in to attendr"),
	).Run()
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := openEnv(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.synchronizer(crosstab.Hooks{}).Logout(cmd.Context()); err != nil {
		env.log.Warn("announcing logout", zap.Error(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}
