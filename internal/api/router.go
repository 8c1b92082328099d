// Package api wires the PayPal mock, webhook dispatcher and admin control
// plane into a runnable twin server.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-paypal/internal/config"
	"github.com/wondertwin-ai/twin-paypal/internal/paypal"
	"github.com/wondertwin-ai/twin-paypal/internal/store"
	paypalwh "github.com/wondertwin-ai/twin-paypal/internal/webhook"
	"github.com/wondertwin-ai/twin-paypal/pkg/admin"
	"github.com/wondertwin-ai/twin-paypal/pkg/twincore"
	"github.com/wondertwin-ai/twin-paypal/pkg/webhook"
)

// Server is a fully wired twin.
type Server struct {
	Twin       *twincore.Twin
	Mock       *paypal.Mock
	Store      *store.MemoryStore
	Dispatcher *webhook.Dispatcher

	mw *twincore.Middleware
}

// New builds the twin described by cfg. Seed data named by cfg.SeedFile is
// loaded before the server is returned.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	twin := twincore.NewWithLogger(&cfg.Config, logger)

	ids := store.RandomIDs()
	if cfg.SequentialIDs() {
		ids = store.SequentialIDs()
	}
	memStore := store.NewWithIDs(ids)

	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Signer:      paypalwh.NewPayPalSigner(cfg.WebhookID).WithClock(memStore.Clock.Now),
		Logger:      logger,
		AutoDeliver: cfg.WebhookAutoDeliver,
		Now:         memStore.Clock.Now,
	})

	opts := []paypal.Option{
		paypal.WithHostname(cfg.APIHostname),
		paypal.WithStore(memStore),
		paypal.WithClock(memStore.Clock),
		paypal.WithNotifier(dispatcher),
		paypal.WithLogger(logger),
	}
	if cfg.ClientID != "" || cfg.ClientSecret != "" {
		creds := paypal.DefaultCredentials()
		if cfg.ClientID != "" {
			creds.ClientID = cfg.ClientID
		}
		if cfg.ClientSecret != "" {
			creds.Secret = cfg.ClientSecret
		}
		opts = append(opts, paypal.WithCredentials(creds))
	}
	if cfg.TokenKey != "" {
		opts = append(opts, paypal.WithTokenIssuer(paypal.NewTokenIssuer([]byte(cfg.TokenKey))))
	}
	mock := paypal.New(opts...)

	s := &Server{
		Twin:       twin,
		Mock:       mock,
		Store:      memStore,
		Dispatcher: dispatcher,
		mw:         twin.Middleware(),
	}
	s.mw.Idempotent.SetClock(memStore.Clock.Now)
	s.Routes(twin.Router)

	adminHandler := admin.NewHandler(twinState{memStore, dispatcher}, s.mw, memStore.Clock)
	adminHandler.SetFlusher(dispatcher)
	adminHandler.SetConfigProvider(runtimeConfig{twin, dispatcher})
	adminHandler.SetResponder(mock)
	adminHandler.Routes(twin.Router)

	if cfg.SeedFile != "" {
		if err := memStore.LoadSeedFile(cfg.SeedFile); err != nil {
			return nil, err
		}
		logger.Info("loaded seed data", "file", cfg.SeedFile)
	}
	return s, nil
}

// Routes mounts the PayPal API and the PayPal-specific admin endpoints.
// Unmatched paths are answered by the mock, which replies with its default
// 400 response.
func (s *Server) Routes(r chi.Router) {
	api := s.mw.FaultInjection(s.idempotency(s.Mock))
	r.Handle("/v1/*", api)
	r.NotFound(api.ServeHTTP)

	r.Post("/admin/subscriptions/{id}/approve", s.approveSubscription)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Twin.ServeHTTP(w, r)
}

func (s *Server) approveSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.Mock.ApproveSubscription(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, paypal.ErrNotFound):
		twincore.PayPalError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, paypal.ErrNotPending):
		twincore.PayPalError(w, r, http.StatusConflict, err.Error())
	case err != nil:
		twincore.PayPalError(w, r, http.StatusInternalServerError, err.Error())
	default:
		twincore.JSON(w, http.StatusOK, sub)
	}
}

// twinState adapts the store and dispatcher to admin.StateStore so a reset
// also forgets published webhook events.
type twinState struct {
	store      *store.MemoryStore
	dispatcher *webhook.Dispatcher
}

func (ts twinState) Snapshot() any               { return ts.store.Snapshot() }
func (ts twinState) LoadState(data []byte) error { return ts.store.LoadState(data) }

func (ts twinState) Reset() {
	ts.store.Reset()
	ts.dispatcher.Reset()
}

// runtimeConfig keeps the dispatcher's target in step with webhook_url
// updates made through /admin/config.
type runtimeConfig struct {
	twin       *twincore.Twin
	dispatcher *webhook.Dispatcher
}

func (rc runtimeConfig) GetConfig() map[string]any { return rc.twin.GetConfig() }

func (rc runtimeConfig) UpdateConfig(updates map[string]any) error {
	if err := rc.twin.UpdateConfig(updates); err != nil {
		return err
	}
	rc.dispatcher.SetURL(rc.twin.WebhookURL())
	return nil
}
