// Package telegram delivers best-effort trade and error notifications
// through the Bot API. Delivery failures are logged and swallowed; they
// must never abort trading.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"solmaker/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Service posts messages to a single chat. A service with an empty token is
// valid and drops every message.
type Service struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	log     zerolog.Logger
}

func NewService(token, chatID string) *Service {
	return &Service{
		token:   token,
		chatID:  chatID,
		apiBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: sendTimeout},
		log:     logger.New("telegram"),
	}
}

// Enabled reports whether notifications are configured.
func (s *Service) Enabled() bool {
	return s.token != "" && s.chatID != ""
}

// NotifyTrade reports a completed trade.
func (s *Service) NotifyTrade(ctx context.Context, side, venue, wallet string, amountSOL float64, signature string) {
	s.send(ctx, fmt.Sprintf(
		"%s on %s\nwallet: %s\namount: %.6f SOL\ntx: %s",
		side, venue, wallet, amountSOL, signature,
	))
}

// NotifyGuardian reports a crash-defense activation or release.
func (s *Service) NotifyGuardian(ctx context.Context, active bool, strength string) {
	if active {
		s.send(ctx, fmt.Sprintf("guardian activated: %s intervention", strength))
		return
	}
	s.send(ctx, "guardian deactivated")
}

// NotifyError reports a failure worth human attention.
func (s *Service) NotifyError(ctx context.Context, message string) {
	s.send(ctx, "error: "+message)
}

func (s *Service) send(ctx context.Context, text string) {
	if !s.Enabled() {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("encode notification")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.log.Warn().Err(err).Msg("build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("send notification")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Warn().Int("status", resp.StatusCode).Msg("notification rejected")
	}
}
