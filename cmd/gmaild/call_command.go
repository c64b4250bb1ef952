package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gmaild/internal/ipc"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	var paramsJSON string
	var callID string
	var sets []string

	cmd := &cobra.Command{
		Use:   "call METHOD",
		Short: "Invoke a service method through the daemon",
		Example: `  gmaild call gmail.inbox
  gmaild call gmail.search -p '{"query":"from:billing","limit":5}'
  gmaild call gmail.read --set message_id=18c2f0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := buildCallParams(paramsJSON, sets)
			if err != nil {
				return err
			}
			req := ipc.CallRequest{ID: strings.TrimSpace(callID), Method: strings.TrimSpace(args[0]), Params: params}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Call(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else if resp.OK {
					if err := writeJSON(cmd, resp.Result); err != nil {
						return err
					}
				}
				if !resp.OK && resp.Error != nil {
					return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "Method parameters as a JSON object")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a string parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&callID, "id", "", "Call ID to attach to the request")
	return cmd
}

// buildCallParams merges a JSON object with key=value pairs; pairs win.
func buildCallParams(raw string, sets []string) (map[string]any, error) {
	var params map[string]any
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("parse --params: expected a JSON object: %w", err)
		}
	}
	for _, pair := range sets {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		if params == nil {
			params = make(map[string]any, len(sets))
		}
		params[key] = value
	}
	return params, nil
}
