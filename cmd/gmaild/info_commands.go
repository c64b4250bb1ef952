package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gmaild/internal/ipc"
)

// errUnhealthy makes `gmaild health` exit non-zero without repeating the table.
var errUnhealthy = errors.New("one or more health checks failed")

func newMethodsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the methods the daemon serves",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Methods()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderMethods(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func renderMethods(w io.Writer, resp *ipc.MethodsResponse) {
	fmt.Fprintf(w, "%s %s\n", resp.Service, resp.Version)
	rows := make([][]string, 0, len(resp.Methods))
	for _, m := range resp.Methods {
		rows = append(rows, []string{m.Name, formatParams(m.Params), m.Description})
	}
	fmt.Fprintln(w, renderTable([]string{"Method", "Params", "Description"}, rows, nil))
}

func formatParams(params []ipc.ParamInfo) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		part := p.Name
		switch {
		case p.Required:
			part += "*"
		case p.Default != nil:
			part += fmt.Sprintf("=%v", p.Default)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run the daemon health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Health()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					stdout := cmd.OutOrStdout()
					renderHealth(stdout, resp, shouldColorize(stdout))
				}
				if !resp.OK {
					return errUnhealthy
				}
				return nil
			})
		},
	}
}

func renderHealth(w io.Writer, resp *ipc.HealthResponse, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("%s %s", resp.Service, resp.Version), colorize) {
		fmt.Fprintln(w, line)
	}
	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := resp.Checks[name]
		detail := check.Message
		if check.LatencyMS != nil {
			detail = strings.TrimSpace(fmt.Sprintf("%s (%.1fms)", detail, *check.LatencyMS))
		}
		fmt.Fprintln(w, renderStatusLine(displayLabel(name), statusKindFor(check.OK), detail, colorize))
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var method string
	var summary bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent calls from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(ipc.HistoryRequest{Limit: limit, Method: strings.TrimSpace(method)})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderHistory(cmd.OutOrStdout(), resp, summary)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of calls to show")
	cmd.Flags().StringVarP(&method, "method", "m", "", "Only show calls to this method")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show per-method totals instead of individual calls")
	return cmd
}

func renderHistory(w io.Writer, resp *ipc.HistoryResponse, summary bool) {
	if !resp.Enabled {
		fmt.Fprintln(w, "Call journal is disabled (set [journal] enabled = true)")
		return
	}
	if summary {
		if len(resp.Summary) == 0 {
			fmt.Fprintln(w, "No calls recorded")
			return
		}
		rows := make([][]string, 0, len(resp.Summary))
		for _, s := range resp.Summary {
			rows = append(rows, []string{
				s.Method,
				strconv.Itoa(s.Calls),
				strconv.Itoa(s.Failures),
				formatMillis(s.AvgLatencyMS),
				s.LastCalled,
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Method", "Calls", "Failures", "Avg", "Last Called"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
		return
	}
	if len(resp.Entries) == 0 {
		fmt.Fprintln(w, "No calls recorded")
		return
	}
	rows := make([][]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		outcome := "ok"
		if !e.OK {
			outcome = strings.TrimSpace(e.ErrorKind + ": " + e.ErrorMessage)
		}
		rows = append(rows, []string{
			e.StartedAt,
			e.Method,
			displayLabel(e.Mode),
			formatMillis(e.DurationMS),
			outcome,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Started", "Method", "Mode", "Duration", "Outcome"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func formatMillis(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}
