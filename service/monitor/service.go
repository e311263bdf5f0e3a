// Package monitor consumes the live transaction feed for the venue program
// and publishes parsed trade observations.
package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"

	"solmaker/internal/parser"
	"solmaker/pkg/logger"
)

const (
	reconnectDelay    = 3 * time.Second
	fetchRetries      = 3
	fetchRetryDelay   = 150 * time.Millisecond
	observationBuffer = 64
	maxInflightFetch  = 16
)

// Service subscribes to logs mentioning the venue program, resolves each
// signature to a full transaction, and parses it into an observation. The
// feed path never triggers trades; it only feeds the modulators.
type Service struct {
	wsEndpoint string
	client     *rpc.Client
	programID  solana.PublicKey
	parser     *parser.Parser

	observations chan *parser.Observation
	inflight     chan struct{}
	log          zerolog.Logger
}

// NewService wires the feed. A non-empty token is appended to the endpoint
// as an api-key query parameter, the auth scheme used by hosted RPC feeds.
func NewService(wsEndpoint, token string, client *rpc.Client, programID solana.PublicKey, p *parser.Parser) *Service {
	if token != "" && !strings.Contains(wsEndpoint, "api-key") {
		sep := "?"
		if strings.Contains(wsEndpoint, "?") {
			sep = "&"
		}
		wsEndpoint += sep + "api-key=" + token
	}
	return &Service{
		wsEndpoint:   wsEndpoint,
		client:       client,
		programID:    programID,
		parser:       p,
		observations: make(chan *parser.Observation, observationBuffer),
		inflight:     make(chan struct{}, maxInflightFetch),
		log:          logger.New("monitor"),
	}
}

// Observations is the stream of parsed competing trades.
func (s *Service) Observations() <-chan *parser.Observation {
	return s.observations
}

// Start runs the subscribe-consume loop until ctx is canceled, reconnecting
// on any feed error.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.consume(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("feed disconnected")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

func (s *Service) consume(ctx context.Context) error {
	wsClient, err := ws.Connect(ctx, s.wsEndpoint)
	if err != nil {
		return err
	}
	defer wsClient.Close()

	sub, err := wsClient.LogsSubscribeMentions(s.programID, rpc.CommitmentProcessed)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	s.log.Info().Str("program", s.programID.String()).Msg("feed subscribed")

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if msg == nil || msg.Value.Err != nil {
			continue
		}
		s.dispatch(ctx, msg.Value.Signature)
	}
}

// dispatch hands a signature to a handler goroutine. At most maxInflightFetch
// resolutions run at once; a saturated pool sheds signatures the same way the
// full observation buffer sheds observations. Reports whether the signature
// was accepted.
func (s *Service) dispatch(ctx context.Context, sig solana.Signature) bool {
	select {
	case s.inflight <- struct{}{}:
		go func() {
			defer func() { <-s.inflight }()
			s.handle(ctx, sig)
		}()
		return true
	default:
		s.log.Debug().Str("signature", sig.String()).Msg("fetch pool saturated, dropping signature")
		return false
	}
}

// handle resolves a signature to its transaction and publishes the parsed
// observation. Slow consumers drop observations rather than stall the feed.
func (s *Service) handle(ctx context.Context, sig solana.Signature) {
	tx := s.fetchTransaction(ctx, sig)
	if tx == nil {
		return
	}

	obs := s.parser.Parse(tx)
	if obs == nil {
		return
	}

	select {
	case s.observations <- obs:
	default:
		s.log.Debug().Str("signature", sig.String()).Msg("observation buffer full, dropping")
	}
}

func (s *Service) fetchTransaction(ctx context.Context, sig solana.Signature) *rpc.GetTransactionResult {
	maxVersion := uint64(0)
	for i := 0; i < fetchRetries; i++ {
		tx, err := s.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			MaxSupportedTransactionVersion: &maxVersion,
			Commitment:                     rpc.CommitmentConfirmed,
		})
		if err == nil && tx != nil {
			return tx
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(fetchRetryDelay * time.Duration(i+1)):
		}
	}
	return nil
}
