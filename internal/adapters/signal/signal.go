// Package signal is the websocket gateway: it owns the upgrade, the read
// and write pumps and the per-connection send queue, and feeds raw frames
// to the hub. It never interprets payloads beyond handing them over.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/app"
	"github.com/nasty-codes-software/resonance/internal/config"
	"github.com/nasty-codes-software/resonance/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	sendQueueSize = 32

	// One active client peaks far below this even mid-call; the cap only
	// exists to keep a runaway script off the dispatch lock.
	frameLimit    = 300
	frameInterval = 10 * time.Second
)

type WSController struct {
	hub     *app.Hub
	cfg     *config.Config
	limiter *FrameRateLimiter
}

func NewWSController(cfg *config.Config, hub *app.Hub) *WSController {
	return &WSController{
		hub:     hub,
		cfg:     cfg,
		limiter: NewFrameRateLimiter(frameLimit, frameInterval),
	}
}

// WsSignalConn adapts one gorilla conn to core.SignalConnection. Sends are
// queued; a full queue drops the frame instead of blocking the hub.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSocket upgrades the request and runs the connection until either
// side closes. Identity arrives later over the socket itself, so the
// upgrade is anonymous.
func (ctl *WSController) HandleSocket(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendQueueSize),
	}

	id := ctl.hub.OnOpen(conn)
	log.Info().Str("module", "signal").Uint64("conn", uint64(id)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn)
}
