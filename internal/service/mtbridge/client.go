package mtbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TickPulse/internal/domain/models"
	"TickPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements repository.TerminalBridge over a persistent
// WebSocket connection to the market-data terminal bridge. Requests are
// JSON frames answered by the bridge with a matching id; at most one
// request is in flight at a time.
type Client struct {
	url            string
	connectTimeout time.Duration
	requestTimeout time.Duration
	log            *logger.Logger

	// reqMu serializes request/response exchanges; mu guards only the
	// connection state, so IsConnected and Close stay cheap while a
	// request is in flight.
	reqMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    uint64
}

// New creates a bridge client. The connection is established lazily via
// Connect.
func New(url string, connectTimeout, requestTimeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		url:            url,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
		log:            log.With("mtbridge"),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("bridge connect %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Info("connected", logger.String("url", c.url))
	return nil
}

// IsConnected reports connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Reconnect closes the current connection and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	return c.Connect(ctx)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

type tickRequest struct {
	ID     uint64 `json:"id"`
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
	FromMs int64  `json:"from_ms"`
	ToMs   int64  `json:"to_ms"`
}

type tickResponse struct {
	ID    uint64        `json:"id"`
	Error string        `json:"error,omitempty"`
	Ticks []models.Tick `json:"ticks"`
}

// FetchTicks requests raw ticks for [from, to). An empty tick list with
// no error means the market produced nothing in that range.
func (c *Client) FetchTicks(ctx context.Context, symbol string, from, to time.Time) ([]models.Tick, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	if conn == nil || !c.connected {
		c.mu.Unlock()
		return nil, fmt.Errorf("bridge not connected")
	}
	c.nextID++
	req := tickRequest{
		ID:     c.nextID,
		Op:     "ticks",
		Symbol: symbol,
		FromMs: from.UnixMilli(),
		ToMs:   to.UnixMilli(),
	}
	c.mu.Unlock()

	deadline := time.Now().Add(c.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(&req); err != nil {
		c.dropConn(conn)
		return nil, fmt.Errorf("bridge write %s: %w", symbol, err)
	}

	// The bridge answers requests in order but may interleave unrelated
	// frames (heartbeats); skip until the matching id arrives.
	for {
		var resp tickResponse
		if err := conn.ReadJSON(&resp); err != nil {
			c.dropConn(conn)
			return nil, fmt.Errorf("bridge read %s: %w", symbol, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("bridge error for %s: %s", symbol, resp.Error)
		}
		return resp.Ticks, nil
	}
}

// dropConn tears down conn after an I/O failure, unless a reconnect
// already replaced it.
func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.connected = false
	_ = conn.Close()
	c.conn = nil
}
