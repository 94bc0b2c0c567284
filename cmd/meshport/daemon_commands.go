package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meshport/internal/daemonctl"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the meshport daemon",
	}
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch meshportd in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := daemonctl.NewClient(cfg)
			out := cmd.OutOrStdout()
			if status, err := client.Status(cmd.Context()); err == nil && status.Running {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", status.PID)
				return nil
			}

			executable, _ := os.Executable()
			binary, err := daemonctl.ResolveBinary(executable)
			if err != nil {
				return err
			}
			if err := daemonctl.Launch(binary, strings.TrimSpace(*ctx.configFlag)); err != nil {
				return err
			}
			status, err := client.WaitForReady(cmd.Context(), wait)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", status.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the daemon to answer")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := daemonctl.Stop(cfg, wait); err != nil {
				if errors.Is(err, daemonctl.ErrNotRunning) {
					fmt.Fprintln(out, "Daemon is not running")
					return nil
				}
				return err
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for shutdown")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := daemonctl.NewClient(cfg).Status(cmd.Context())
			out := cmd.OutOrStdout()
			if err != nil {
				if errors.Is(err, daemonctl.ErrNotRunning) {
					if ctx.JSONMode() {
						return writeJSON(cmd, map[string]any{"running": false})
					}
					fmt.Fprintln(out, "Daemon is not running")
					return nil
				}
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, status)
			}

			fmt.Fprintf(out, "Running: %s (pid %d)\n", yesNo(status.Running), status.PID)
			fmt.Fprintf(out, "Ledger:  %s\n", status.LedgerPath)
			fmt.Fprintf(out, "Staging: %s\n", status.StagingDir)
			names := make([]string, 0, len(status.RunStats))
			for name := range status.RunStats {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{statusTitle.String(name), fmt.Sprintf("%d", status.RunStats[name])})
			}
			if len(rows) > 0 {
				fmt.Fprint(out, renderTable([]string{"Status", "Runs"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			for _, dep := range status.Dependencies {
				fmt.Fprintf(out, "%s (%s): %s\n", dep.Name, dep.Command, yesNo(dep.Available))
			}
			return nil
		},
	}
}
