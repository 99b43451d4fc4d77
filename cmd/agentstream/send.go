package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nixlim/agentstream/internal/events"
	"github.com/nixlim/agentstream/internal/sender"
)

const defaultCollectorURL = "http://localhost:3001"

// newSendCmd builds the send subcommand, the hook-side counterpart of
// the viewer: it posts a single event to a collector. Agent hook
// scripts call it with --app and --event-type and whatever payload the
// hook captured.
func newSendCmd() *cobra.Command {
	var (
		serverURL string
		app       string
		eventType string
		summary   string
		agentType string
		sessionID string
		payload   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a single event to a collector",
		Long: `Post one telemetry event to a collector's /events endpoint.

The collector URL comes from --server, then $OBSERVABILITY_SERVER_URL,
then ` + defaultCollectorURL + `. The session id comes from --session-id, then
$CLAUDE_SESSION_ID, then a freshly generated UUID.`,
		Example: `  agentstream send --app claude-code --event-type tool_use --summary "ran Bash" \
      --payload '{"tool_name":"Bash","exit_code":0}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := serverURL
			if endpoint == "" {
				endpoint = os.Getenv("OBSERVABILITY_SERVER_URL")
			}
			if endpoint == "" {
				endpoint = defaultCollectorURL
			}

			if sessionID == "" {
				sessionID = os.Getenv("CLAUDE_SESSION_ID")
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			var attrs map[string]any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &attrs); err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
			}
			if agentType != "" {
				if attrs == nil {
					attrs = make(map[string]any)
				}
				attrs[events.AttrAgentType] = agentType
			}

			s, err := sender.New(endpoint, sender.WithTimeout(timeout))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			id, err := s.Send(ctx, events.Event{
				Timestamp:  time.Now(),
				Source:     app,
				SessionID:  sessionID,
				Category:   eventType,
				Summary:    summary,
				Attributes: attrs,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "event %d accepted\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "collector endpoint (defaults to $OBSERVABILITY_SERVER_URL)")
	cmd.Flags().StringVar(&app, "app", "", "source application name")
	cmd.Flags().StringVar(&eventType, "event-type", "", "event category, e.g. tool_use or error")
	cmd.Flags().StringVar(&summary, "summary", "", "one-line human-readable summary")
	cmd.Flags().StringVar(&agentType, "agent-type", "", "agent type recorded in the payload")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id (defaults to $CLAUDE_SESSION_ID or a random UUID)")
	cmd.Flags().StringVar(&payload, "payload", "", "event attributes as a JSON object")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("event-type")

	return cmd
}
