// Package server exposes the health endpoint and the optional webhook
// ingress that feeds updates into the bus.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/bus"
	"github.com/vigarepo2/elixir/pkg/config"
	"github.com/vigarepo2/elixir/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

type Server struct {
	server *http.Server
	config *config.Config
	bus    *bus.UpdateBus
}

func NewServer(cfg *config.Config, updateBus *bus.UpdateBus) *Server {
	return &Server{
		config: cfg,
		bus:    updateBus,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/", s.handleRoot)

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.InfoCF("server", "Starting HTTP server", map[string]interface{}{
		"addr":    addr,
		"webhook": s.config.Telegram.Webhook,
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("server", "HTTP server failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		logger.InfoC("server", "Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Elixir Bot Gateway\nTime: %s", time.Now().Format(time.RFC3339))
}

// handleWebhook accepts a platform update and queues it; processing happens
// on the dispatcher side so the webhook responds immediately.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.config.Telegram.Webhook {
		http.Error(w, "webhook mode disabled", http.StatusServiceUnavailable)
		return
	}

	var update telego.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err := dec.Decode(&update); err != nil {
		logger.WarnCF("server", "Rejected unparseable webhook payload", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		http.Error(w, "bad update payload", http.StatusBadRequest)
		return
	}

	s.bus.Publish(update)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
