package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"
)

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var (
		message        string
		conversationID string
		personaID      string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one turn against the configured collaborators and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(message) == "" {
				return errors.New("--message is required")
			}
			a, cleanup, err := bootstrap(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer cleanup()

			body, err := simulateBody(message, conversationID, personaID)
			if err != nil {
				return err
			}
			headers := map[string]string{"Content-Type": "application/json"}
			if a.Config.APIKey != "" {
				headers["X-Api-Key"] = a.Config.APIKey
			}
			resp, err := a.Handler.Handle(cmd.Context(), events.APIGatewayProxyRequest{
				HTTPMethod: "POST",
				Path:       "/api/honeypot",
				Headers:    headers,
				Body:       body,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), indent(resp.Body))
			if err == nil && resp.StatusCode >= 400 {
				err = fmt.Errorf("turn failed with status %d", resp.StatusCode)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "incoming message text")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation id (generated when empty)")
	cmd.Flags().StringVar(&personaID, "persona", "", "behavioural profile id")
	return cmd
}

func simulateBody(message, conversationID, personaID string) (string, error) {
	b, err := json.Marshal(map[string]string{
		"message":        message,
		"conversationId": conversationID,
		"personaId":      personaID,
	})
	return string(b), err
}

func indent(body string) string {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return body
	}
	return string(out)
}
