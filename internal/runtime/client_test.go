package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
)

func TestNewPartnerClient(t *testing.T) {
	partner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status_code":1000,"timestamp":"2024-01-01T00:00:00Z"}`))
	}))
	defer partner.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("reaches loopback by default", func(t *testing.T) {
		cfg := &config.Config{Client: config.ClientConfig{Timeout: time.Second}}
		c := newPartnerClient(cfg, logger)
		if _, err := c.Post(context.Background(), partner.URL, "secret", map[string]string{"result": "ACCEPTED"}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	})

	t.Run("blocks private networks when configured", func(t *testing.T) {
		cfg := &config.Config{Client: config.ClientConfig{Timeout: time.Second, BlockPrivateNetworks: true}}
		c := newPartnerClient(cfg, logger)
		_, err := c.Post(context.Background(), partner.URL, "secret", map[string]string{"result": "ACCEPTED"})
		if err == nil || !strings.Contains(err.Error(), "denied") {
			t.Fatalf("Post() error = %v, want denial", err)
		}
	})
}
