package hue

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultDialTimeout  = 5 * time.Second
	defaultTLSHandshake = 5 * time.Second
)

// Runtime is the process scoped transport state. Acquire it once with Init
// before creating clients and release it with Close after every client has
// been closed.
type Runtime struct {
	mu        sync.Mutex
	transport *http.Transport
	tlsConfig *tls.Config
	timeout   time.Duration
	rateLimit rate.Limit
	burst     int
	clients   int
	closed    bool
}

type RuntimeOption func(*Runtime)

// handle is the transport state owned by one client.
type handle struct {
	http      *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
}

// WithTimeout bounds a single exchange. Zero disables the bound.
func WithTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// WithRateLimit paces the exchanges of each client. Bridges drop commands
// sent faster than about ten per second.
func WithRateLimit(limit rate.Limit, burst int) RuntimeOption {
	return func(r *Runtime) {
		r.rateLimit = limit
		r.burst = burst
	}
}

// WithTLSConfig replaces the default TLS configuration, which accepts the
// bridge's self-signed certificate.
func WithTLSConfig(cfg *tls.Config) RuntimeOption {
	return func(r *Runtime) {
		r.tlsConfig = cfg
	}
}

func Init(opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		timeout:   defaultTimeout,
		rateLimit: rate.Inf,
		tlsConfig: &tls.Config{
			// Bridges serve a certificate signed by the vendor's private CA
			// with the bridge id as common name.
			InsecureSkipVerify: true, //nolint:gosec
			MinVersion:         tls.VersionTLS12,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout < 0 {
		return nil, fmt.Errorf("hue: invalid exchange timeout %s", r.timeout)
	}
	if r.rateLimit <= 0 || (r.rateLimit != rate.Inf && r.burst < 1) {
		return nil, fmt.Errorf("hue: invalid rate limit %v/%d", r.rateLimit, r.burst)
	}
	if r.tlsConfig == nil {
		return nil, fmt.Errorf("hue: missing TLS configuration")
	}

	r.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     r.tlsConfig,
		TLSHandshakeTimeout: defaultTLSHandshake,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   false,
	}
	return r, nil
}

// Close releases the process wide transport. It fails while clients are
// still open.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	if r.clients > 0 {
		return fmt.Errorf("%w: %d", ErrClientsOpen, r.clients)
	}
	r.closed = true
	r.transport.CloseIdleConnections()
	return nil
}

// OpenClients returns the number of clients not yet closed.
func (r *Runtime) OpenClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients
}

// acquireHandle hands out a transport handle owned by a single client.
func (r *Runtime) acquireHandle() (*handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRuntimeClosed
	}
	r.clients++
	transport := r.transport.Clone()
	return &handle{
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
					return "hue " + req.Method
				}),
			),
			Timeout: r.timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport: transport,
		limiter:   rate.NewLimiter(r.rateLimit, r.burst),
	}, nil
}

func (r *Runtime) releaseHandle(h *handle) {
	h.transport.CloseIdleConnections()
	r.mu.Lock()
	r.clients--
	r.mu.Unlock()
}
