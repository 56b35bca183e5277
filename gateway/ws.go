package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"paluwagan/auth"
	"paluwagan/domain/event"
	"paluwagan/sink"
)

const wsWriteTimeout = 10 * time.Second

// envelope is the wire frame for stream messages. Kind lets clients route
// without reflection; payload is the full self-describing event.
type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromRequest(s.tokens, r)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	memberID, err := uuid.Parse(claims.MemberID)
	if err != nil {
		http.Error(w, "invalid identity", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sessionID, sessionSink := s.pools.Subscribe(memberID)
	defer s.pools.Unsubscribe(sessionID)
	s.log.Info("Session connected", "session_id", sessionID, "codename", claims.Codename)

	// Clients never send after the upgrade; CloseRead surfaces disconnects
	// through context cancellation.
	ctx := conn.CloseRead(r.Context())

	if err := s.streamEvents(ctx, conn, sessionSink); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
	s.log.Info("Session disconnected", "session_id", sessionID)
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, sessionSink *sink.SessionSink) error {
	// First frame is the full schedule so a reconnecting client starts from
	// the current state instead of replaying missed events.
	if err := writeEnvelope(ctx, conn, envelope{Kind: "snapshot", Payload: s.pools.Snapshot()}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sessionSink.Events:
			if !ok {
				return nil
			}
			if err := writeEnvelope(ctx, conn, envelope{Kind: event.Kind(evt), Payload: evt}); err != nil {
				return err
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
