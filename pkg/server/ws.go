package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/samanhappy/selectly/pkg/logging"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second

	wsReadLimit = 4 << 20
)

func startWSPing(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}

type wsChatFrame struct {
	Type  string `json:"type"` // delta | done | error
	Delta string `json:"delta,omitempty"`
	Model string `json:"model,omitempty"`
	Error any    `json:"error,omitempty"`
}

// handleChatSocket serves a request/response chat socket: the client sends
// one chat request per message and receives a sequence of delta frames
// terminated by done or error. Requests are handled serially per
// connection.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Same-origin policy is enforced by corsMiddleware for HTTP;
		// extension origins are not valid Origin patterns here.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.appLogger.Warn(logging.CategoryServer, "ws_accept_failed", err.Error(), nil)
		return
	}
	conn.SetReadLimit(wsReadLimit)
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	startWSPing(ctx, conn)

	for {
		var req chatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			// Client went away or sent garbage; either way the socket is done.
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err := req.validate(); err != nil {
			_ = wsjson.Write(ctx, conn, wsChatFrame{Type: "error", Error: errorPayload(err)})
			continue
		}

		err := s.router.ChatStream(ctx, req.messages(), func(delta, usedModel string) {
			_ = wsjson.Write(ctx, conn, wsChatFrame{Type: "delta", Delta: delta, Model: usedModel})
		}, req.Model)
		if err != nil {
			metricChatRequests.WithLabelValues("error").Inc()
			_ = wsjson.Write(ctx, conn, wsChatFrame{Type: "error", Error: errorPayload(err)})
			continue
		}

		metricChatRequests.WithLabelValues("ok").Inc()
		if err := wsjson.Write(ctx, conn, wsChatFrame{Type: "done"}); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
