package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/five82/perch/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "perch: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:           "perch",
		Short:         "Terminal client for your Twitter home timeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Version = version
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "credential file path (default ~/.config/perch/credentials.toml)")
	root.Flags().StringVar(&opts.PrefsPath, "prefs", "", "preferences file path (default ~/.config/perch/prefs.toml)")
	root.Flags().StringVar(&opts.LogPath, "log", "", "log file path (default $XDG_STATE_HOME/perch/perch.log)")

	root.AddCommand(newVersionCmd(), newLogoutCmd(&opts), newLogsCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "perch %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newLogoutCmd(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Twitter credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Logout(opts.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	var (
		logOpts app.LogsOptions
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the end of the perch log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if f, ok := out.(*os.File); ok && !noColor {
				logOpts.Color = isatty.IsTerminal(f.Fd())
			}
			return app.ShowLogs(out, logOpts)
		},
	}
	cmd.Flags().StringVar(&logOpts.Path, "file", "", "log file path (default $XDG_STATE_HOME/perch/perch.log)")
	cmd.Flags().IntVarP(&logOpts.Lines, "lines", "n", 50, "number of lines to show (0 for all)")
	cmd.Flags().StringVar(&logOpts.Level, "level", "", "minimum level to show (debug, info, warn, error)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colour output")
	return cmd
}
