package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultServerURL is used when no --server flag is given.
const DefaultServerURL = "http://localhost:8080"

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// Command is a parsed invocation of the control tool.
type Command struct {
	Action    string // "health" or "stats"
	ServerURL string
}

// ParseArgs parses command-line arguments into a Command.
// Usage: courierctl <health|stats> [--server URL]
func ParseArgs(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<action>", Cause: "no action provided, want health or stats"}
	}

	cmd := &Command{ServerURL: DefaultServerURL}

	switch args[0] {
	case "health", "stats":
		cmd.Action = args[0]
	default:
		return nil, &ValidationError{Arg: args[0], Cause: "unknown action, want health or stats"}
	}

	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == "--server":
			if i+1 >= len(rest) {
				return nil, &ValidationError{Arg: "--server", Cause: "missing value"}
			}
			i++
			cmd.ServerURL = rest[i]
		case strings.HasPrefix(rest[i], "--server="):
			cmd.ServerURL = strings.TrimPrefix(rest[i], "--server=")
		default:
			return nil, &ValidationError{Arg: rest[i], Cause: "unknown flag"}
		}
	}

	if _, err := url.ParseRequestURI(cmd.ServerURL); err != nil {
		return nil, &ValidationError{Arg: cmd.ServerURL, Cause: "not a valid server URL"}
	}

	return cmd, nil
}

var actionPaths = map[string]string{
	"health": "/health",
	"stats":  "/api/stats",
}

// Run executes the command against the server and writes the formatted
// response to out.
func Run(cmd *Command, out io.Writer) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(cmd.ServerURL + actionPaths[cmd.Action])
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	// Stable output order.
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %v\n", k, fields[k])
	}

	return nil
}
