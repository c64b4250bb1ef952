package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gmaild/internal/daemonctl"
	"gmaild/internal/ipc"
)

const (
	startWaitTimeout = 15 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gmaild daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				startWaitTimeout,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the gmaild daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed unresponsive daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the gmaild daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				stopGracePeriod,
				startWaitTimeout,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed unresponsive daemon process (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the launched daemon")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, backend and call status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				stdout := cmd.OutOrStdout()
				renderStatus(stdout, status, shouldColorize(stdout))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(w io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(w, line)
	}
	runKind := statusError
	if status.Running {
		runKind = statusOK
	}
	fmt.Fprintln(w, renderStatusLine("Running", runKind, fmt.Sprintf("pid %d, up %s", status.PID, formatUptime(status.UptimeSecs)), colorize))
	fmt.Fprintln(w, renderStatusLine("Service", statusInfo, status.Service+" "+status.Version, colorize))
	fmt.Fprintln(w, renderStatusLine("Backend mode", statusInfo, displayLabel(status.Mode), colorize))
	fmt.Fprintln(w, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	if status.APIAddress != "" {
		fmt.Fprintln(w, renderStatusLine("HTTP API", statusInfo, status.APIAddress, colorize))
	}
	journal := "disabled"
	if status.JournalPath != "" {
		journal = status.JournalPath
	}
	fmt.Fprintln(w, renderStatusLine("Journal", statusInfo, journal, colorize))

	if s := status.Session; s != nil {
		fmt.Fprintln(w)
		for _, line := range renderSectionHeader("Warm Session", colorize) {
			fmt.Fprintln(w, line)
		}
		if s.Alive {
			fmt.Fprintln(w, renderStatusLine("Session", statusOK, fmt.Sprintf("pid %d (%s %s)", s.PID, s.Name, s.Version), colorize))
		} else {
			fmt.Fprintln(w, renderStatusLine("Session", statusError, strings.TrimSpace("lost "+s.LostError), colorize))
		}
		fmt.Fprintln(w, renderStatusLine("Busy", statusInfo, yesNo(s.Busy), colorize))
		fmt.Fprintln(w, renderStatusLine("Calls served", statusInfo, fmt.Sprintf("%d", s.Calls), colorize))
		if s.LastCall != "" {
			fmt.Fprintln(w, renderStatusLine("Last call", statusInfo, s.LastCall, colorize))
		}
	}

	fmt.Fprintln(w)
	for _, line := range renderSectionHeader("Calls", colorize) {
		fmt.Fprintln(w, line)
	}
	rows := [][]string{
		{"Total", fmt.Sprintf("%d", status.Calls.Total)},
		{"Failed", fmt.Sprintf("%d", status.Calls.Failed)},
		{"In flight", fmt.Sprintf("%d", status.Calls.InFlight)},
		{"Queued", fmt.Sprintf("%d", status.Calls.Queued)},
		{"Serial", yesNo(status.Calls.Serial)},
	}
	fmt.Fprintln(w, renderTable([]string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func formatUptime(seconds float64) string {
	return (time.Duration(seconds) * time.Second).Round(time.Second).String()
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
