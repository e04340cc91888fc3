package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/checkers-match-backend/internal/types"
)

type HandlerConfig struct {
	// ReadTimeout is how long a socket may stay silent before it is closed.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
	OriginPatterns []string
}

func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		ReadLimit:    64 << 10,
	}
}

func Handler(g *Gateway, cfg HandlerConfig) http.HandlerFunc {
	def := DefaultHandlerConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			g.log.Debug("ws_accept_failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(cfg.ReadLimit)

		connID := uuid.NewString()
		client := g.conns.Register(connID)
		log := g.log.With(zap.String("conn_id", connID))
		log.Info("client_connected", zap.String("remote", r.RemoteAddr))

		// Cleanup must outlive the request context, which is already
		// cancelled when the peer goes away.
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			g.Disconnect(ctx, connID)
			log.Info("client_disconnected")
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writePump(writeCtx, conn, client, cfg, log)

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.ReadTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("ws_read_ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Debug("bad_json", zap.Error(err))
				continue
			}

			dctx, dcancel := context.WithTimeout(r.Context(), 5*time.Second)
			g.Dispatch(dctx, connID, cm)
			dcancel()
		}
	}
}

// writePump drains the client's queue onto the socket. When the client is
// dropped for falling behind it closes the socket, which ends the reader.
func writePump(ctx context.Context, conn *websocket.Conn, c *Client, cfg HandlerConfig, log *zap.Logger) {
	ping := time.NewTicker(cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.Done():
			if ctx.Err() == nil {
				log.Warn("client_dropped")
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
			}
			return

		case msg := <-c.Send():
			wctx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				log.Debug("ws_write_failed", zap.String("type", msg.Type), zap.Error(err))
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				log.Debug("ws_ping_failed", zap.Error(err))
			}
		}
	}
}
