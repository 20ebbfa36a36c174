package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/actiongw/internal/config"
	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/gateway"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/soyeahso/actiongw/internal/version"
	"github.com/spf13/cobra"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send events to the gateway",
	}

	cmd.AddCommand(newEventSendCmd())
	return cmd
}

type eventFlags struct {
	sessionID string
	key       string
	channel   string
	user      string
	url       string
	local     bool
}

func newEventSendCmd() *cobra.Command {
	var f eventFlags

	cmd := &cobra.Command{
		Use:   "send <action> [payload-json]",
		Short: "Send one event and print the response envelope",
		Long: "Send one event and print the response envelope.\n\n" +
			"By default the event is posted to the running gateway. With --local it runs\n" +
			"through an in-process gateway backed by an in-memory store.",
		Example: `  actiongw event send chat_send '{"message":"what do you offer?"}'
  actiongw event send open_view '{"route":"/pricing"}' --local
  actiongw event send pricing_query '{"tier":"growth"}' --key quote-0001`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var resp domain.Response
			if f.local {
				resp, err = sendLocal(ctx, cfg, req)
			} else {
				url := f.url
				if url == "" {
					url = gatewayURL(cfg)
				}
				resp, err = sendRemote(ctx, url, cfg.Gateway.Auth.Token, req)
			}
			if err != nil {
				return err
			}

			if err := printEnvelope(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("%s: %s", resp.Code, resp.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.sessionID, "session", "cli", "session id")
	cmd.Flags().StringVar(&f.key, "key", "", "idempotency key")
	cmd.Flags().StringVar(&f.channel, "channel", "", "client channel (webapp, whatsapp, instagram, telegram, x)")
	cmd.Flags().StringVar(&f.user, "user", "", "signed-in user")
	cmd.Flags().StringVar(&f.url, "url", "", "gateway base URL (default from config)")
	cmd.Flags().BoolVar(&f.local, "local", false, "run the event through an in-process gateway")

	return cmd
}

func (f eventFlags) request(args []string) (domain.EventRequest, error) {
	req := domain.EventRequest{
		SessionID:      f.sessionID,
		Action:         args[0],
		IdempotencyKey: f.key,
	}
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return req, fmt.Errorf("payload is not valid JSON: %s", args[1])
		}
		req.Payload = json.RawMessage(args[1])
	}
	if f.channel != "" || f.user != "" {
		req.Meta = &domain.EventMeta{Channel: f.channel, User: f.user}
	}
	return req, nil
}

func sendLocal(ctx context.Context, cfg config.Config, req domain.EventRequest) (domain.Response, error) {
	level := logLevel
	if level == "" {
		level = "warn"
	}
	a, err := buildApp(cfg, ":memory:", logging.New(nil, level))
	if err != nil {
		return domain.Response{}, err
	}
	defer a.Close()
	return a.gateway.Handle(ctx, req), nil
}

func sendRemote(ctx context.Context, baseURL, token string, req domain.EventRequest) (domain.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/event", bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return domain.Response{}, fmt.Errorf("posting event: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return domain.Response{}, err
	}

	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil || (!resp.OK && resp.Code == "") {
		return domain.Response{}, fmt.Errorf("gateway returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(data))
	}
	if want := gateway.HTTPStatus(resp); want != httpResp.StatusCode {
		log.Debug().Int("status", httpResp.StatusCode).Int("expected", want).Msg("unexpected status for envelope")
	}
	return resp, nil
}

func printEnvelope(w io.Writer, resp domain.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
