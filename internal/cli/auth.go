package cli

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func (c *cli) loginCommand() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a shopper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.Session.Login(cmd.Context(), flags.email, flags.password)
			if err != nil {
				return err
			}
			return c.printUser(user)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (c *cli) adminLoginCommand() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "admin-login",
		Short: "Sign in to the back-office",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.Session.AdminLogin(cmd.Context(), flags.email, flags.password)
			if err != nil {
				return err
			}
			return c.printUser(user)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (c *cli) registerCommand() *cobra.Command {
	var (
		name  string
		flags credentialFlags
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; a verification email is sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := c.app.Session.Register(cmd.Context(), name, flags.email, flags.password)
			if err != nil {
				return err
			}
			return c.printer().message("%s", msg)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("name")
	flags.bind(cmd)
	return cmd
}

func (c *cli) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify an email address with the token from the verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.app.Session.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printer().message("%s", msg)
		},
	}
}

func (c *cli) callbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "callback <url>",
		Short: "Finish a social sign-in with the callback address the provider redirected to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := callbackParams(args[0])
			if err != nil {
				return err
			}
			user, err := c.app.Session.CompleteCallback(cmd.Context(), params)
			if err != nil {
				return err
			}
			return c.printUser(user)
		},
	}
}

// callbackParams accepts a full callback URL or just its query string.
func callbackParams(raw string) (url.Values, error) {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid callback: %w", err)
	}
	return params, nil
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			return c.printer().message("Signed out")
		},
	}
}

func (c *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := c.app.Session.User()
			if user == nil {
				return errors.New("not signed in")
			}
			return c.printUser(user)
		},
	}
}

func (c *cli) printUser(u *domain.User) error {
	return c.printer().print(u, func(w io.Writer) {
		role := "shopper"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Fprintf(w, "Signed in as %s <%s> (%s)\n", u.Name, u.Email, role)
	})
}
