package api

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// handleStream upgrades to a WebSocket and bridges it to a session's PTY,
// grounded on ehrlich-b-wingthing's internal/relay/pty_relay.go
// handlePTYWS: accept, then pump inbound reads to the session's write path
// and outbound broadcast chunks to the connection, with no framing beyond
// the WS message boundary.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.facade.Get(id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	sub, replay, err := s.facade.Subscribe(id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, err.Error())
		return
	}
	defer s.facade.Unsubscribe(id, sub)

	ctx := r.Context()

	// Replay recent scrollback on attach so a reconnecting peer sees
	// continuity before live tailing begins.
	if len(replay) > 0 {
		if err := conn.Write(ctx, websocket.MessageBinary, []byte(strings.Join(replay, "\n")+"\n")); err != nil {
			return
		}
	}

	inboundDone := make(chan struct{})
	go func() {
		defer close(inboundDone)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if _, werr := s.facade.Write(id, data); werr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-inboundDone:
			return
		case <-sub.Done():
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		case chunk, ok := <-sub.Chan():
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		}
	}
}
