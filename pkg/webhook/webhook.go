// Package webhook provides an outbound dispatcher for PayPal-style webhook
// events with queueing, retries, a circuit breaker and pluggable signing.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// EventVersion is the event_version stamped on every event.
const EventVersion = "1.0"

// Signer signs webhook payloads.
type Signer interface {
	// Sign returns headers to add to the webhook request.
	Sign(payload []byte, secret string) map[string]string
}

// Event is a PayPal webhook event envelope.
type Event struct {
	ID           string `json:"id"`
	EventVersion string `json:"event_version"`
	CreateTime   string `json:"create_time"`
	ResourceType string `json:"resource_type"`
	EventType    string `json:"event_type"`
	Summary      string `json:"summary"`
	Resource     any    `json:"resource"`
}

// Delivery records a webhook delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config configures the webhook dispatcher.
type Config struct {
	URL         string
	Secret      string
	Signer      Signer
	Logger      *slog.Logger
	MaxRetries  int
	RetryDelay  time.Duration
	AutoDeliver bool // deliver events asynchronously as they are queued
	Client      *http.Client
	Now         func() time.Time

	// BreakerThreshold is the number of consecutive failed attempts that
	// opens the circuit. Zero means 5.
	BreakerThreshold uint32
	// BreakerTimeout is how long the circuit stays open. Zero means 30s.
	BreakerTimeout time.Duration
}

// Dispatcher manages outbound webhook delivery.
type Dispatcher struct {
	mu          sync.RWMutex
	url         string
	secret      string
	signer      Signer
	logger      *slog.Logger
	queue       []Event
	events      []Event
	deliveries  []Delivery
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	now         func() time.Time
	autoDeliver bool
	inflight    sync.WaitGroup
}

// ErrDeliveryFailed is returned when an endpoint answers with a non-2xx status.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "webhook-delivery",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Info("webhook circuit state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Dispatcher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		signer:      cfg.Signer,
		logger:      cfg.Logger,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      cfg.Client,
		breaker:     breaker,
		now:         cfg.Now,
		autoDeliver: cfg.AutoDeliver,
	}
}

// SetURL updates the webhook delivery URL.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// SetSecret updates the webhook signing secret.
func (d *Dispatcher) SetSecret(secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.secret = secret
}

// SetAutoDeliver toggles asynchronous delivery of newly queued events.
func (d *Dispatcher) SetAutoDeliver(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoDeliver = on
}

// NewEventID returns an ID shaped like PayPal's, e.g. WH-1A2B3C4D5E6F7A8B9-0C1D2E3F4A5B6C7D8.
func NewEventID() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "WH-" + hex[:17] + "-" + hex[17:]
}

// Notify queues an event for a state change. It never blocks on delivery,
// so it is safe to call while holding the caller's locks.
func (d *Dispatcher) Notify(eventType, resourceType, summary string, resource any) {
	d.Enqueue(Event{
		EventType:    eventType,
		ResourceType: resourceType,
		Summary:      summary,
		Resource:     resource,
	})
}

// Enqueue stamps and queues evt. If auto delivery is on, it is delivered
// asynchronously instead of waiting for Flush.
func (d *Dispatcher) Enqueue(evt Event) Event {
	if evt.ID == "" {
		evt.ID = NewEventID()
	}
	if evt.EventVersion == "" {
		evt.EventVersion = EventVersion
	}
	if evt.CreateTime == "" {
		evt.CreateTime = d.now().UTC().Format(time.RFC3339)
	}

	d.mu.Lock()
	d.events = append(d.events, evt)
	auto := d.autoDeliver
	if auto {
		d.inflight.Add(1)
	} else {
		d.queue = append(d.queue, evt)
	}
	d.mu.Unlock()

	if auto {
		go func() {
			defer d.inflight.Done()
			if err := d.deliver(context.Background(), evt); err != nil {
				d.logger.Info("webhook delivery failed", "event_id", evt.ID, "error", err)
			}
		}()
	}
	return evt
}

// Wait blocks until all asynchronous deliveries have finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Flush delivers all queued events synchronously and returns the last error.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.RLock()
	events := make([]Event, len(d.queue))
	copy(events, d.queue)
	d.mu.RUnlock()

	var lastErr error
	for _, evt := range events {
		if err := d.deliver(ctx, evt); err != nil {
			lastErr = err
		}
	}

	d.mu.Lock()
	if len(d.queue) >= len(events) {
		d.queue = append(d.queue[:0], d.queue[len(events):]...)
	}
	d.mu.Unlock()

	return lastErr
}

// FlushWebhooks implements admin.WebhookFlusher.
func (d *Dispatcher) FlushWebhooks() error {
	return d.Flush(context.Background())
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) error {
	d.mu.RLock()
	url := d.url
	secret := d.secret
	signer := d.signer
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no webhook URL configured, skipping delivery", "event_id", evt.ID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		delivery := Delivery{
			EventID:   evt.ID,
			URL:       url,
			Attempt:   attempt,
			Timestamp: d.now(),
		}

		resp, err := d.breaker.Execute(func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			if signer != nil && secret != "" {
				for k, v := range signer.Sign(payload, secret) {
					req.Header.Set(k, v)
				}
			}
			resp, err := d.client.Do(req)
			if err != nil {
				return nil, err
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return resp, fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
			}
			return resp, nil
		})
		if resp != nil {
			delivery.StatusCode = resp.StatusCode
		}
		if err != nil {
			delivery.Error = err.Error()
			lastErr = err
		}
		d.record(delivery)

		if err == nil {
			d.logger.Info("webhook delivered", "event_id", evt.ID, "event_type", evt.EventType, "status", delivery.StatusCode)
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("deliver %s: %w", evt.ID, err)
		}
		if attempt < d.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
	}

	return fmt.Errorf("deliver %s: %w", evt.ID, lastErr)
}

func (d *Dispatcher) record(delivery Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
}

// BreakerState reports the delivery circuit state ("closed", "half-open" or "open").
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}

// Deliveries returns all delivery records.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// QueuedEvents returns all queued but undelivered events.
func (d *Dispatcher) QueuedEvents() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.queue))
	copy(out, d.queue)
	return out
}

// AllEvents returns every event published since the last reset.
func (d *Dispatcher) AllEvents() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Reset clears all events, deliveries, and the queue.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = d.queue[:0]
	d.events = d.events[:0]
	d.deliveries = d.deliveries[:0]
}
