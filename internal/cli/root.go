// Package cli implements the storefront command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fjod/storefront/internal/app"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/widget"
	"github.com/spf13/cobra"
)

// AppFactory builds the application for one invocation.
type AppFactory func(ctx context.Context, envFiles []string, out io.Writer) (*app.App, error)

type Options struct {
	Out    io.Writer
	Err    io.Writer
	NewApp AppFactory
}

type cli struct {
	opts     Options
	envFiles []string
	output   string
	app      *app.App
}

// DefaultApp loads the configuration from the environment and shows payment pages by printing
// their address.
func DefaultApp(ctx context.Context, envFiles []string, out io.Writer) (*app.App, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.Options{
		LogOutput: out,
		Launcher: widget.LauncherFunc(func(_ context.Context, url string) error {
			_, err := fmt.Fprintf(out, "Open this page to complete the payment:\n  %s\n", url)
			return err
		}),
	})
}

// Execute runs the command line with args and releases the application afterwards.
func Execute(ctx context.Context, opts Options, args []string) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.NewApp == nil {
		opts.NewApp = DefaultApp
	}

	c := &cli{opts: opts}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "storefront",
		Short: "Shop and run the back-office of an e-commerce storefront",
		Long: `storefront talks to the storefront backend API on behalf of a shopper or an admin.

The session token and the cart are kept in local storage between runs, so a
signed-in shopper stays signed in and the cart survives restarts.

Examples:
  storefront login --email asha@example.com --password secret
  storefront products --category Books
  storefront cart add 64f1c0ffee --qty 2
  storefront checkout --street "12 MG Road" --city Bengaluru --state KA --zip 560001`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load before the environment (default .env)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "table", "output format: table, json or yaml")

	root.AddCommand(
		c.loginCommand(),
		c.adminLoginCommand(),
		c.registerCommand(),
		c.verifyCommand(),
		c.callbackCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.productsCommand(),
		c.productCommand(),
		c.cartCommand(),
		c.checkoutCommand(),
		c.ordersCommand(),
		c.orderCommand(),
		c.adminCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	switch c.output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}

	a, err := c.opts.NewApp(cmd.Context(), c.envFiles, c.opts.Err)
	if err != nil {
		return err
	}
	c.app = a

	if _, err := a.Restore(cmd.Context()); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

func (c *cli) printer() printer {
	return printer{w: c.opts.Out, format: c.output}
}

func (c *cli) requireSession() error {
	if !c.app.Session.IsAuthenticated() {
		return errors.New("not signed in, run `storefront login` first")
	}
	return nil
}
