package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/consult"
	httpserver "github.com/fyrsmithlabs/advisord/internal/http"
	"github.com/spf13/cobra"
)

func newConsultCmd() *cobra.Command {
	var (
		sessionID string
		answer    string
		asJSON    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "consult [question]",
		Short: "Ask a running advisord server for a recommendation",
		Long: `Send a question to a running advisord server and print the recommendation.

The question is taken from the arguments, or from stdin when none are given
or the only argument is "-".

Examples:
  # Ask a question
  advisord consult "Solo consultant, $150k profit, should I elect S-Corp?"

  # Continue a session and answer the advisor's clarification question
  advisord consult --session 3f0c... --answer "Delaware" "Here are more details"

  # Print the raw JSON response
  advisord consult --json < question.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, args)
			if err != nil {
				return err
			}

			req := consult.Request{Query: query}
			if sessionID != "" || answer != "" {
				req.Context = &consult.RequestContext{SessionID: sessionID, ClarificationAnswer: answer}
			}

			body, err := postJSON(serverURL+"/api/consult", req, timeout)
			if err != nil {
				return err
			}
			if asJSON {
				_, err = cmd.OutOrStdout().Write(append(body, '\n'))
				return err
			}

			var resp httpserver.ConsultResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			printRecommendation(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session ID returned by a previous consultation")
	cmd.Flags().StringVar(&answer, "answer", "", "answer to the advisor's clarification question")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check advisord server health",
		Long: `Check the health status of a running advisord server.

Examples:
  # Check health
  advisord health

  # Check health on a different server
  advisord health --server http://localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := serverURL + "/api/health"

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer resp.Body.Close()

			body, err := readOK(resp)
			if err != nil {
				return err
			}

			var health httpserver.HealthResponse
			if err := json.Unmarshal(body, &health); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status:   %s\n", health.Status)
			fmt.Fprintf(out, "Server URL:      %s\n", serverURL)
			fmt.Fprintf(out, "Agents:          %s\n", strings.Join(health.Agents, ", "))
			fmt.Fprintf(out, "Active Sessions: %d\n", health.ActiveSessions)
			return nil
		},
	}
}

// readQuery returns the question from args or stdin.
func readQuery(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}

	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("no question given")
	}
	return string(content), nil
}

func postJSON(url string, payload any, timeout time.Duration) ([]byte, error) {
	reqJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	return readOK(resp)
}

// readOK returns the body of a 200 response, or the server's error detail.
func readOK(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp httpserver.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, errResp.Detail)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func printRecommendation(w io.Writer, resp httpserver.ConsultResponse) {
	if resp.NeedsClarification {
		fmt.Fprintf(w, "The advisor needs more information:\n  %s\n", resp.Question())
		fmt.Fprintf(w, "\nReply with: advisord consult --session %s --answer \"...\" \"...\"\n", resp.SessionID)
		return
	}

	fmt.Fprintf(w, "Recommended structure: %s\n", resp.RecommendedStructure)
	printList(w, "Key benefits", resp.KeyBenefits, false)
	printList(w, "Trade-offs", resp.TradeOffs, false)
	if len(resp.Conflicts) > 0 {
		fmt.Fprintf(w, "\nConflicts:\n")
		for _, c := range resp.Conflicts {
			fmt.Fprintf(w, "  - %s\n    %s\n    Resolution: %s\n", c.Area, c.Description, c.Resolution)
		}
	}
	printList(w, "Next steps", resp.NextSteps, true)
	fmt.Fprintf(w, "\nSession: %s\n", resp.SessionID)
}

func printList(w io.Writer, title string, items []string, numbered bool) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, item := range items {
		if numbered {
			fmt.Fprintf(w, "  %d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
}
