package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solmaker/internal/parser"
)

func testFeedService(t *testing.T) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return NewService("ws://feed.local", "", rpc.New(srv.URL), solana.PublicKey{}, parser.New(solana.PublicKey{}))
}

func TestNewServiceAppendsStreamToken(t *testing.T) {
	s := NewService("wss://feed.local/ws", "secret", nil, solana.PublicKey{}, nil)
	assert.Equal(t, "wss://feed.local/ws?api-key=secret", s.wsEndpoint)

	s = NewService("wss://feed.local/ws?region=eu", "secret", nil, solana.PublicKey{}, nil)
	assert.Equal(t, "wss://feed.local/ws?region=eu&api-key=secret", s.wsEndpoint)

	s = NewService("wss://feed.local/ws?api-key=already", "secret", nil, solana.PublicKey{}, nil)
	assert.Equal(t, "wss://feed.local/ws?api-key=already", s.wsEndpoint)
}

func TestDispatchShedsWhenSaturated(t *testing.T) {
	s := testFeedService(t)
	for i := 0; i < maxInflightFetch; i++ {
		s.inflight <- struct{}{}
	}

	accepted := s.dispatch(context.Background(), solana.Signature{})
	assert.False(t, accepted, "a full handler pool must shed, not spawn")
}

func TestDispatchAcceptsWithCapacity(t *testing.T) {
	s := testFeedService(t)

	require.True(t, s.dispatch(context.Background(), solana.Signature{}))

	// The handler gives its slot back once the fetch fails out.
	deadline := time.After(5 * time.Second)
	for len(s.inflight) != 0 {
		select {
		case <-deadline:
			t.Fatal("handler never released its slot")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
