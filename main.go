package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/cli"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/server"
	"github.com/antibyte/retrocalc/pkg/session"
	tlsmanager "github.com/antibyte/retrocalc/pkg/tls"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "retrocalc",
		Short:        "Standard, scientific and programmer calculator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configuration.Initialize(configPath); err != nil {
				return fmt.Errorf("error initializing configuration: %w", err)
			}
			if err := logger.Initialize(); err != nil {
				return fmt.Errorf("error initializing logger: %w", err)
			}
			logger.ConfigInfo("Configuration loaded from: %s", configPath)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "settings.cfg", "configuration file")

	root.AddCommand(newServeCmd(), newReplCmd(), newEvalCmd(), newCertCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator over HTTP and websockets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := tlsmanager.NewManager(tlsmanager.ConfigFromSettings())
			if err != nil {
				return fmt.Errorf("TLS setup failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.OptionsFromConfig())
			logger.Info(logger.AreaGeneral, "Server starting")
			if err := srv.Run(ctx, tm); err != nil {
				logger.Error(logger.AreaGeneral, "Server stopped: %v", err)
				return err
			}
			logger.Info(logger.AreaGeneral, "Server stopped")
			return nil
		},
	}
}

// contextFlags parses the --mode and --base values, falling back to the
// [Calculator] defaults for flags left empty.
func contextFlags(modeFlag, baseFlag string) (calc.Context, error) {
	opts := session.OptionsFromConfig()
	ctx := calc.Context{Mode: opts.Mode, Base: opts.Base}

	if modeFlag != "" {
		mode, err := calc.ParseMode(modeFlag)
		if err != nil {
			return ctx, err
		}
		ctx.Mode = mode
	}
	if baseFlag != "" {
		base, err := calc.ParseBase(baseFlag)
		if err != nil {
			return ctx, err
		}
		ctx.Base = base
	}
	return ctx, nil
}

func newReplCmd() *cobra.Command {
	var modeFlag, baseFlag, historyFile string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive calculator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := contextFlags(modeFlag, baseFlag)
			if err != nil {
				return err
			}

			h, err := history.NewFromConfig()
			if err != nil {
				return err
			}
			defer h.Close()

			opts := session.OptionsFromConfig()
			opts.Mode, opts.Base = ctx.Mode, ctx.Base
			sess := session.NewWithOptions(h, opts)

			repl := cli.NewREPL(sess, os.Stdout, os.Stderr, cli.IsTerminal(os.Stdout))
			return repl.Run(historyFile)
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", "", "start mode (standard, scientific, programmer)")
	cmd.Flags().StringVar(&baseFlag, "base", "", "start base (DEC, HEX, OCT, BIN)")
	cmd.Flags().StringVar(&historyFile, "line-history", "", "file for readline's input history")
	return cmd
}

func newEvalCmd() *cobra.Command {
	var modeFlag, baseFlag string
	cmd := &cobra.Command{
		Use:   "eval EXPR...",
		Short: "Evaluate one expression and print the result",
		Long: `Evaluate one expression and print the result.

The arguments are joined with spaces. Use -- before an expression that
starts with a minus sign, e.g. retrocalc eval -- -5 + 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := contextFlags(modeFlag, baseFlag)
			if err != nil {
				return err
			}
			return cli.Eval(cmd.OutOrStdout(), strings.Join(args, " "), ctx)
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", "", "mode (standard, scientific, programmer)")
	cmd.Flags().StringVar(&baseFlag, "base", "", "programmer base (DEC, HEX, OCT, BIN)")
	return cmd
}

func newCertCmd() *cobra.Command {
	var certFile, keyFile, host string
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Write a self-signed certificate for local TLS testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tlsmanager.GenerateSelfSignedCert(certFile, keyFile, host); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate written to %s, key to %s\n", certFile, keyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&certFile, "cert", "cert.pem", "certificate output file")
	cmd.Flags().StringVar(&keyFile, "key", "key.pem", "private key output file")
	cmd.Flags().StringVar(&host, "host", "localhost", "host name or IP the certificate is valid for")
	return cmd
}
