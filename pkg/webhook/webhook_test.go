package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

type staticSigner struct{}

func (staticSigner) Sign(payload []byte, secret string) map[string]string {
	return map[string]string{"PAYPAL-TRANSMISSION-SIG": "sig_" + secret}
}

var fixedNow = time.Date(2020, time.December, 17, 3, 44, 39, 0, time.UTC)

func newTestDispatcher(url string, cfg Config) *Dispatcher {
	cfg.URL = url
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	cfg.Now = func() time.Time { return fixedNow }
	return NewDispatcher(cfg)
}

func TestNewDispatcherDefaults(t *testing.T) {
	d := NewDispatcher(Config{})
	if d.maxRetries != 3 {
		t.Errorf("expected default maxRetries=3, got %d", d.maxRetries)
	}
	if d.retryDelay != time.Second {
		t.Errorf("expected default retryDelay=1s, got %v", d.retryDelay)
	}
	if d.BreakerState() != "closed" {
		t.Errorf("expected closed breaker, got %s", d.BreakerState())
	}
}

func TestNewEventID(t *testing.T) {
	id := NewEventID()
	if !strings.HasPrefix(id, "WH-") || len(id) != len("WH-")+17+1+15 {
		t.Errorf("unexpected event id %q", id)
	}
	if id == NewEventID() {
		t.Error("expected unique event ids")
	}
}

func TestNotifyQueuesEnvelope(t *testing.T) {
	d := newTestDispatcher("", Config{})
	d.Notify("BILLING.PLAN.CREATED", "plan", "Billing plan created", map[string]any{"id": "P-1"})

	queued := d.QueuedEvents()
	if len(queued) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(queued))
	}
	evt := queued[0]
	if evt.EventType != "BILLING.PLAN.CREATED" || evt.ResourceType != "plan" || evt.Summary != "Billing plan created" {
		t.Errorf("unexpected event %+v", evt)
	}
	if evt.EventVersion != "1.0" || evt.CreateTime != "2020-12-17T03:44:39Z" {
		t.Errorf("unexpected envelope fields %+v", evt)
	}
	if !strings.HasPrefix(evt.ID, "WH-") {
		t.Errorf("unexpected id %q", evt.ID)
	}
}

func TestFlushSuccess(t *testing.T) {
	var received []Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var evt Event
		json.NewDecoder(r.Body).Decode(&evt)
		received = append(received, evt)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{})
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", map[string]any{"id": "PROD-1"})
	d.Notify("CATALOG.PRODUCT.UPDATED", "product", "Product updated", map[string]any{"id": "PROD-1"})

	if err := d.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(received) != 2 || received[1].EventType != "CATALOG.PRODUCT.UPDATED" {
		t.Errorf("unexpected deliveries %+v", received)
	}
	if len(d.QueuedEvents()) != 0 {
		t.Error("expected queue to be drained")
	}
	if len(d.AllEvents()) != 2 {
		t.Error("expected events to be kept after delivery")
	}
	for _, del := range d.Deliveries() {
		if del.StatusCode != http.StatusOK || del.Attempt != 1 || del.Error != "" {
			t.Errorf("unexpected delivery %+v", del)
		}
	}
}

func TestFlushRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{MaxRetries: 3})
	d.Notify("BILLING.PLAN.UPDATED", "plan", "Plan updated", nil)

	if err := d.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	deliveries := d.Deliveries()
	if len(deliveries) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(deliveries))
	}
	if deliveries[0].StatusCode != http.StatusServiceUnavailable || deliveries[0].Error == "" {
		t.Errorf("expected first attempt to record failure, got %+v", deliveries[0])
	}
	if deliveries[2].Attempt != 3 || deliveries[2].StatusCode != http.StatusOK {
		t.Errorf("expected third attempt to succeed, got %+v", deliveries[2])
	}
}

func TestFlushAllRetriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{MaxRetries: 2, BreakerThreshold: 10})
	d.Notify("BILLING.PLAN.UPDATED", "plan", "Plan updated", nil)

	err := d.Flush(t.Context())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if len(d.Deliveries()) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(d.Deliveries()))
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{MaxRetries: 5, BreakerThreshold: 2, BreakerTimeout: time.Hour})
	d.Notify("BILLING.SUBSCRIPTION.CREATED", "subscription", "Subscription created", nil)

	err := d.Flush(t.Context())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected the breaker to stop delivery after 2 calls, got %d", calls.Load())
	}
	if d.BreakerState() != "open" {
		t.Errorf("expected open breaker, got %s", d.BreakerState())
	}
}

func TestFlushNoURL(t *testing.T) {
	d := newTestDispatcher("", Config{})
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", nil)

	if err := d.Flush(t.Context()); err != nil {
		t.Fatalf("expected no error without a URL, got %v", err)
	}
	if len(d.Deliveries()) != 0 {
		t.Error("expected no delivery attempts without a URL")
	}
}

func TestFlushWithSigner(t *testing.T) {
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get("PAYPAL-TRANSMISSION-SIG")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{Signer: staticSigner{}})
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", nil)
	if err := d.FlushWebhooks(); err != nil {
		t.Fatalf("FlushWebhooks: %v", err)
	}
	if sig != "" {
		t.Errorf("expected no signature without a secret, got %q", sig)
	}

	d.SetSecret("shh")
	d.Notify("CATALOG.PRODUCT.UPDATED", "product", "Product updated", nil)
	if err := d.FlushWebhooks(); err != nil {
		t.Fatalf("FlushWebhooks: %v", err)
	}
	if sig != "sig_shh" {
		t.Errorf("expected signed delivery, got %q", sig)
	}
}

func TestAutoDeliver(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{AutoDeliver: true})
	d.Notify("BILLING.PLAN.CREATED", "plan", "Plan created", nil)
	d.Notify("BILLING.PLAN.UPDATED", "plan", "Plan updated", nil)
	d.Wait()

	if calls.Load() != 2 {
		t.Errorf("expected 2 deliveries, got %d", calls.Load())
	}
	if len(d.QueuedEvents()) != 0 {
		t.Error("auto delivered events should not be queued")
	}

	d.SetAutoDeliver(false)
	d.Notify("BILLING.PLAN.UPDATED", "plan", "Plan updated", nil)
	if len(d.QueuedEvents()) != 1 {
		t.Error("expected event to be queued once auto delivery is off")
	}
}

func TestSetURL(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer srv.Close()

	d := newTestDispatcher("", Config{})
	d.SetURL(srv.URL)
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", nil)
	if err := d.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !hit.Load() {
		t.Error("expected delivery to the updated URL")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	d := newTestDispatcher("", Config{})
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", nil)

	q := d.QueuedEvents()
	q[0].EventType = "mutated"
	all := d.AllEvents()
	all[0].EventType = "mutated"

	if d.QueuedEvents()[0].EventType != "CATALOG.PRODUCT.CREATED" || d.AllEvents()[0].EventType != "CATALOG.PRODUCT.CREATED" {
		t.Error("expected accessors to return copies")
	}
}

func TestReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, Config{})
	d.Notify("CATALOG.PRODUCT.CREATED", "product", "Product created", nil)
	d.Flush(t.Context())
	d.Notify("CATALOG.PRODUCT.UPDATED", "product", "Product updated", nil)

	d.Reset()
	if len(d.QueuedEvents()) != 0 || len(d.AllEvents()) != 0 || len(d.Deliveries()) != 0 {
		t.Error("expected Reset to clear events and deliveries")
	}
}
