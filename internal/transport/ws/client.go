// Package ws implements the chat backend transport over a WebSocket carrying
// JSON frames of the form {"event": "<name>", "data": <payload>}.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/socket"
)

const (
	defaultMinDelay     = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	URL          string
	Token        string
	MinDelay     time.Duration
	MaxDelay     time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is a socket.Transport that keeps a WebSocket open, redialing with
// capped exponential delay until Close.
type Client struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]map[int]socket.Handler
	next     int
	started  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	// dispatchMu serializes handler invocations.
	dispatchMu sync.Mutex
}

var _ socket.Transport = (*Client)(nil)

// New creates an idle client. Nothing is dialed until Connect.
func New(opts Options) *Client {
	if opts.MinDelay <= 0 {
		opts.MinDelay = defaultMinDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = max(defaultMaxDelay, opts.MinDelay)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts:     opts,
		log:      log.Named("ws"),
		handlers: make(map[string]map[int]socket.Handler),
		done:     make(chan struct{}),
	}
}

// NewDialer returns a socket.Dialer producing clients that authenticate
// with the credentials' token.
func NewDialer(opts Options) socket.Dialer {
	return func(c socket.Credentials) socket.Transport {
		o := opts
		o.Token = c.Token
		return New(o)
	}
}

// Connect validates the URL and starts the dial loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return fmt.Errorf("parse socket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("socket url %q: scheme must be ws or wss", c.opts.URL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("ws: client closed")
	}
	if c.started {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Emit writes one frame. It returns socket.ErrNotConnected while no
// connection is open.
func (c *Client) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return socket.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, outFrame{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// On registers h for event.
func (c *Client) On(event string, h socket.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]socket.Handler)
	}
	id := c.next
	c.next++
	c.handlers[event][id] = h
	return func() {
		c.mu.Lock()
		delete(c.handlers[event], id)
		c.mu.Unlock()
	}
}

// Close stops the dial loop and drops the connection. It waits for the loop
// to exit, so it must not be called from a handler.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if started {
		<-c.done
	}
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := backoff(c.opts.MinDelay, c.opts.MaxDelay, attempt)
			attempt++
			c.log.Warn("dial failed", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		attempt = 0

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.log.Info("connected", zap.String("url", c.opts.URL))
		c.dispatch(socket.EventConnect, nil)

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.CloseNow()
		c.dispatch(socket.EventDisconnect, nil)

		if ctx.Err() != nil {
			return
		}
		c.log.Warn("connection lost", zap.Error(err))
		if !sleep(ctx, c.opts.MinDelay) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, _, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop decodes frames itself rather than through wsjson.Read, which
// closes the connection on the first undecodable frame.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.log.Debug("dropping malformed frame", zap.ByteString("raw", data))
			continue
		}
		var payload any
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &payload); err != nil {
				c.log.Debug("dropping malformed payload", zap.String("event", f.Event), zap.Error(err))
				continue
			}
		}
		c.dispatch(f.Event, payload)
	}
}

func (c *Client) dispatch(event string, payload any) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	hs := make([]socket.Handler, 0, len(c.handlers[event]))
	for _, h := range c.handlers[event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(payload)
	}
}

// backoff returns min·2^attempt capped at max, plus up to 20% jitter.
func backoff(minDelay, maxDelay time.Duration, attempt int) time.Duration {
	d := float64(minDelay) * math.Pow(2, float64(attempt))
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	d += rand.Float64() * d * 0.2
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
