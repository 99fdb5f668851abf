// Package acp implements the agent commerce protocol collaborator: a
// WebSocket client for the ACP gateway that receives two-phase job callbacks
// and carries the agent's responses (memo signatures, payable requirements,
// deliveries, notifications) back on the same connection.
package acp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acpsuite/settlebot/internal/crypto"
	"github.com/acpsuite/settlebot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// JobHandler processes one job callback. A returned error is logged; the job
// then simply receives no response and the gateway's own redelivery semantics
// apply.
type JobHandler func(ctx context.Context, job domain.ProtocolJob) error

// Client is the WebSocket client for the ACP gateway. It manages the
// connection lifecycle and dispatches each job update to the registered
// handler on its own goroutine, so one slow job never delays another.
type Client struct {
	gatewayURL string
	entityID   int
	signer     *crypto.Signer
	logger     *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	handler JobHandler

	done chan struct{}
}

// NewClient creates a Client for the given gateway URL. The signer provides
// the agent's identity and memo signatures.
func NewClient(gatewayURL string, entityID int, signer *crypto.Signer, logger *slog.Logger) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		entityID:   entityID,
		signer:     signer,
		logger:     logger.With(slog.String("component", "acp_client")),
		done:       make(chan struct{}),
	}
}

// OnJob registers the handler invoked for every job update. It must be called
// before Connect.
func (c *Client) OnJob(handler JobHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Connect dials the gateway, subscribes the agent for job callbacks, and
// starts the read and ping loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("acp: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("acp: connect: %w", err)
	}
	c.conn = conn

	// Set up pong handler for keep-alive.
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := c.writeJSON(subscribeCmd{
		Type:     frameSubscribe,
		Agent:    c.signer.Address().Hex(),
		EntityID: c.entityID,
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("acp: subscribe: %w", err)
	}

	go c.readLoop(ctx)
	go c.pingLoop()

	c.logger.InfoContext(ctx, "connected to gateway",
		slog.String("url", c.gatewayURL),
		slog.String("agent", c.signer.Address().Hex()),
	)
	return nil
}

// Close shuts down the connection and stops the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// readLoop reads frames until the connection drops or the client is closed.
// Each job update is handled on its own goroutine.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		var frame wireFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Error("read failed", slog.String("error", err.Error()))
			}
			return
		}

		if frame.Type != frameJobUpdate || frame.Job == nil {
			c.logger.Debug("ignoring frame", slog.String("type", frame.Type))
			continue
		}

		job := &gatewayJob{client: c, job: *frame.Job}
		go func() {
			if err := c.handleJob(ctx, job); err != nil {
				c.logger.Error("job handling failed",
					slog.String("job_id", job.ID()),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
}

func (c *Client) handleJob(ctx context.Context, job domain.ProtocolJob) error {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return fmt.Errorf("acp: no job handler registered")
	}
	return handler(ctx, job)
}

// pingLoop sends periodic pings for keep-alive.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.mu.Unlock()
					c.logger.Warn("ping failed", slog.String("error", err.Error()))
					return
				}
			}
			c.mu.Unlock()
		}
	}
}

// writeJSON marshals and sends a frame. Caller must hold c.mu.
func (c *Client) writeJSON(v any) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// send acquires the connection lock and sends a frame.
func (c *Client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("acp: %w", domain.ErrWSDisconnect)
	}
	if err := c.writeJSON(v); err != nil {
		return fmt.Errorf("acp: send: %w", err)
	}
	return nil
}
