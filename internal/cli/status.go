package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "actiongw %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}
			printSummary(out, cfg)

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			fmt.Fprintln(out)
			url := gatewayURL(cfg)
			if state, err := checkHealth(url); err != nil {
				color.New(color.FgYellow).Fprint(out, "Server:  ")
				color.New(color.FgRed).Fprintf(out, "not reachable at %s (%v)\n", url, err)
			} else {
				color.New(color.FgGreen).Fprint(out, "Server:  ")
				fmt.Fprintf(out, "%s at %s\n", state, url)
			}
			return nil
		},
	}

	return cmd
}

func printSummary(out io.Writer, cfg config.Config) {
	gw := cfg.Gateway
	fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s tls=%v csrf=%v\n",
		gw.Port, gw.Bind, gw.Auth.Mode, gw.TLS.Enabled, gw.CSRF.Enabled)

	ttl := cfg.Session.TTL
	fmt.Fprintf(out, "Session: webapp=%s whatsapp=%s instagram=%s telegram=%s x=%s\n",
		ttl.Webapp, ttl.WhatsApp, ttl.Instagram, ttl.Telegram, ttl.X)
	fmt.Fprintf(out, "Idem:    window=%s max=%d\n", cfg.Idempotency.Window, cfg.Idempotency.MaxEntries)
	fmt.Fprintf(out, "Store:   %s\n", paths.StorePath(cfg.Store.Path))

	switch cfg.LLM.Provider {
	case "ollama":
		fmt.Fprintf(out, "LLM:     ollama model=%s endpoint=%s (canned fallback)\n", cfg.LLM.Model, cfg.LLM.Endpoint)
	default:
		fmt.Fprintf(out, "LLM:     %s\n", cfg.LLM.Provider)
	}

	if cfg.Validator.IsEnabled() {
		fmt.Fprintf(out, "Checker: threshold=%.2f\n", cfg.Validator.Threshold)
	} else {
		fmt.Fprintln(out, "Checker: disabled")
	}
	if len(cfg.RateLimits) > 0 {
		fmt.Fprintf(out, "Limits:  %d override(s)\n", len(cfg.RateLimits))
	}
}

// gatewayURL returns the base URL a local client should use for cfg.
func gatewayURL(cfg config.Config) string {
	scheme := "http"
	if cfg.Gateway.TLS.Enabled {
		scheme = "https"
	}
	host := "127.0.0.1"
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost != "" {
		host = cfg.Gateway.CustomBindHost
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Gateway.Port)
}

func checkHealth(baseURL string) (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Status, nil
}
