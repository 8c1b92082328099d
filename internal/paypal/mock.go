// Package paypal implements a stateful mock of the PayPal REST API subset
// used for catalog products, billing plans and billing subscriptions.
//
// A Mock answers requests from an in-memory model. It can be installed as an
// http.Client transport (it implements http.RoundTripper) to intercept
// outgoing calls to the sandbox host, or served directly as an http.Handler.
package paypal

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
	pkgstore "github.com/wondertwin-ai/twin-paypal/pkg/store"
)

// DefaultHostname is the sandbox API host the mock answers for.
const DefaultHostname = "api.sandbox.paypal.com"

// DefaultCreateTime is the timestamp stamped on new records by the default clock.
var DefaultCreateTime = time.Date(2020, time.December, 17, 3, 44, 39, 0, time.UTC)

// Clock supplies the time used for create_time/update_time fields.
type Clock interface {
	Now() time.Time
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock { return fixedClock(t) }

// Option configures a Mock.
type Option func(*Mock)

// WithHostname sets the host requests must target. An empty hostname
// disables the host check.
func WithHostname(hostname string) Option {
	return func(m *Mock) { m.hostname = strings.ToLower(hostname) }
}

// WithCredentials sets the client ID and secret accepted by the token endpoint.
func WithCredentials(c Credentials) Option {
	return func(m *Mock) { m.creds = c }
}

// WithStore sets the backing store.
func WithStore(s *store.MemoryStore) Option {
	return func(m *Mock) { m.store = s }
}

// WithClock sets the clock used for timestamps.
func WithClock(c Clock) Option {
	return func(m *Mock) { m.clock = c }
}

// WithTokenIssuer sets the issuer used by the token endpoint.
func WithTokenIssuer(ti *TokenIssuer) Option {
	return func(m *Mock) { m.tokens = ti }
}

// WithNotifier sets the sink for webhook events.
func WithNotifier(n Notifier) Option {
	return func(m *Mock) { m.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mock) { m.logger = l }
}

// WithDebugIDs sets the generator for debug_id values in error payloads.
func WithDebugIDs(g pkgstore.IDGenerator) Option {
	return func(m *Mock) { m.responses.debugIDs = g }
}

// Mock is the PayPal API mock. Dispatch is serialised, so a Mock may be
// shared by concurrent callers.
type Mock struct {
	mu sync.Mutex

	hostname  string
	creds     Credentials
	store     *store.MemoryStore
	clock     Clock
	tokens    *TokenIssuer
	notifier  Notifier
	logger    *slog.Logger
	responses responses
	routes    []route

	fixed *reply
}

// New creates a Mock with an empty store and the sandbox defaults.
func New(opts ...Option) *Mock {
	m := &Mock{
		hostname:  DefaultHostname,
		creds:     DefaultCredentials(),
		clock:     FixedClock(DefaultCreateTime),
		notifier:  nopNotifier{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		responses: responses{debugIDs: pkgstore.NewHexID("", 13)},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = store.New()
	}
	if m.tokens == nil {
		m.tokens = NewTokenIssuer([]byte(pkgstore.RandomHex(32)))
	}
	m.routes = m.routeTable()
	return m
}

// WithResponse makes every subsequent request return status code and body
// verbatim, bypassing routing, auth and the store.
func (m *Mock) WithResponse(code int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed = &reply{status: code, body: []byte(body)}
}

// Product returns the stored product with the given ID.
func (m *Mock) Product(id string) (store.Product, bool) {
	return m.store.Products.Get(id)
}

// Plan returns the stored plan with the given ID.
func (m *Mock) Plan(id string) (store.Plan, bool) {
	return m.store.Plans.Get(id)
}

// Subscription returns the stored subscription with the given ID.
func (m *Mock) Subscription(id string) (store.Subscription, bool) {
	return m.store.Subscriptions.Get(id)
}

// Handle dispatches req and returns the synthesized response.
func (m *Mock) Handle(req *http.Request) *http.Response {
	return m.serve(req).response(req)
}

// RoundTrip implements http.RoundTripper.
func (m *Mock) RoundTrip(req *http.Request) (*http.Response, error) {
	resp := m.Handle(req)
	if req.Body != nil {
		req.Body.Close()
	}
	return resp, nil
}

// ServeHTTP implements http.Handler.
func (m *Mock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.serve(r).write(w)
}

func (m *Mock) serve(req *http.Request) reply {
	m.mu.Lock()
	rep := m.dispatch(req)
	m.mu.Unlock()

	m.logger.Debug("paypal request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", rep.status,
	)
	return rep
}

func (m *Mock) dispatch(req *http.Request) reply {
	if m.fixed != nil {
		return *m.fixed
	}
	if m.hostname != "" && requestHost(req) != m.hostname {
		return notFound()
	}

	c := &call{req: req}
	for _, rt := range m.routes {
		id, ok := rt.match(req.URL.Path)
		if !ok {
			continue
		}
		c.id = id
		return rt.serve(c)
	}
	return notFound()
}

func (m *Mock) now() string {
	return m.clock.Now().UTC().Format(time.RFC3339)
}

// linkHost is the host used in resource links.
func (m *Mock) linkHost() string {
	if m.hostname == "" {
		return DefaultHostname
	}
	return m.hostname
}

// webHost is the checkout host paired with the API host.
func (m *Mock) webHost() string {
	return "www." + strings.TrimPrefix(m.linkHost(), "api.")
}

func (m *Mock) resourceURL(path string) string {
	return "https://" + m.linkHost() + path
}

func requestHost(req *http.Request) string {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// call carries one request through a route handler.
type call struct {
	req  *http.Request
	id   string
	body []byte
	read bool
}

func (c *call) bodyBytes() []byte {
	if c.read {
		return c.body
	}
	c.read = true
	if c.req.Body == nil {
		return nil
	}
	data, err := io.ReadAll(c.req.Body)
	if err != nil {
		return nil
	}
	c.body = data
	return data
}

// reply is a dispatch outcome before it is rendered for the transport.
type reply struct {
	status int
	body   []byte
}

func (r reply) response(req *http.Request) *http.Response {
	header := make(http.Header)
	if len(r.body) > 0 {
		header.Set("Content-Type", "application/json")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		StatusCode:    r.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.body)),
		ContentLength: int64(len(r.body)),
		Request:       req,
	}
}

func (r reply) write(w http.ResponseWriter) {
	if len(r.body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		w.Write(r.body)
	}
}
