package hue

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hue-rest-client/internal/domain/model"
	xlog "hue-rest-client/internal/log"
	"hue-rest-client/internal/ports"
)

const defaultAppName = "huerest"

// DebugLevel selects how much a client reports to its debug sink.
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugErr
	DebugInfo
	DebugDebug
)

func (d DebugLevel) zerologLevel() zerolog.Level {
	switch d {
	case DebugErr:
		return zerolog.ErrorLevel
	case DebugInfo:
		return zerolog.InfoLevel
	case DebugDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.Disabled
	}
}

// ParseDebugLevel accepts off, err, info and debug.
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return DebugOff, nil
	case "err", "error":
		return DebugErr, nil
	case "info":
		return DebugInfo, nil
	case "debug":
		return DebugDebug, nil
	}
	return DebugOff, fmt.Errorf("unknown debug level %q", s)
}

type ClientConfig struct {
	Address   string
	Port      int
	Username  string // empty until the application is registered
	ClientKey string

	AppName    string // truncated to model.AppNameSize
	DeviceName string // truncated to model.DeviceNameSize, defaults to the hostname

	Logger     *zerolog.Logger // nil uses the global logger
	DebugLevel DebugLevel
}

// exchange holds the bodies of the one exchange a client may have in flight.
type exchange struct {
	request  []byte
	response []byte
	status   int
}

// Client is the connection context for one bridge. It is not safe for
// concurrent use; overlapping calls fail with ErrBusy.
type Client struct {
	rt      *Runtime
	handle  *handle
	address string
	port    int
	base    string
	log     zerolog.Logger

	username   string
	clientKey  string
	deviceType string

	pending   exchange
	areas     []model.EntertainmentArea
	whitelist []model.WhitelistEntry

	busy   atomic.Bool
	closed bool
}

var _ ports.BridgePort = (*Client)(nil)

// NewClient creates the connection context for the bridge at cfg.Address.
func (r *Runtime) NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" || strings.Contains(cfg.Address, "/") {
		return nil, fmt.Errorf("%w: bad address %q", ErrInvalidConfig, cfg.Address)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}

	h, err := r.acquireHandle()
	if err != nil {
		return nil, err
	}

	logger := xlog.WithComponent("hue")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str(xlog.FieldComponent, "hue").Logger()
	}
	logger = logger.Level(cfg.DebugLevel.zerologLevel()).With().
		Str(xlog.FieldBridge, cfg.Address).
		Logger()

	c := &Client{
		rt:         r,
		handle:     h,
		address:    cfg.Address,
		port:       cfg.Port,
		base:       (&url.URL{Scheme: "https", Host: net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))}).String(),
		log:        logger,
		username:   cfg.Username,
		clientKey:  cfg.ClientKey,
		deviceType: deviceType(cfg.AppName, cfg.DeviceName),
	}
	c.log.Debug().Int("port", cfg.Port).Str("devicetype", c.deviceType).Msg("client initialised")
	return c, nil
}

// Close releases the transport handle, cached listings, pending buffers and
// credentials. The client is unusable afterwards.
func (c *Client) Close() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)
	if c.closed {
		return ErrClientClosed
	}
	c.closed = true
	c.rt.releaseHandle(c.handle)
	c.handle = nil
	c.pending = exchange{}
	c.areas = nil
	c.whitelist = nil
	c.username = ""
	c.clientKey = ""
	c.log.Debug().Msg("client closed")
	return nil
}

// Credentials returns the username and client key currently stored.
func (c *Client) Credentials() model.Credentials {
	return model.Credentials{Username: c.username, ClientKey: c.clientKey}
}

// DeviceType is the "app#device" identifier sent on registration.
func (c *Client) DeviceType() string {
	return c.deviceType
}

// acquire claims the single exchange slot.
func (c *Client) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	if c.closed {
		c.busy.Store(false)
		return ErrClientClosed
	}
	return nil
}

func (c *Client) release() {
	c.busy.Store(false)
}

func (c *Client) userPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "/api", url.PathEscape(c.username))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func deviceType(app, device string) string {
	if app == "" {
		app = defaultAppName
	}
	if device == "" {
		device = defaultDeviceName()
	}
	return truncate(app, model.AppNameSize) + "#" + truncate(device, model.DeviceNameSize)
}

func defaultDeviceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.New().String()[:8]
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
