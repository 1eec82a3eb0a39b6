package gateway

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/chimebox/chimebox/pkg/player"
)

// StreamServer is the low-latency streaming ingest endpoint. Each
// websocket binary message carries one compressed audio frame; the
// connection's lifetime brackets the engine's streaming mode.
//
// The ring buffer behind the engine is single-producer, so only one
// stream connection is accepted at a time.
type StreamServer struct {
	g        *Gateway
	upgrader websocket.Upgrader
	active   atomic.Bool
}

// StreamServer returns the websocket ingest endpoint for this gateway.
func (g *Gateway) StreamServer() *StreamServer {
	return &StreamServer{
		g: g,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func streamMode(r *http.Request) (player.StreamMode, bool) {
	switch r.URL.Query().Get("codec") {
	case "", "opus":
		return player.ModeOpus, true
	case "adpcm":
		return player.ModeADPCM, true
	default:
		return 0, false
	}
}

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mode, ok := streamMode(r)
	if !ok {
		http.Error(w, "unknown codec", http.StatusBadRequest)
		return
	}
	if !s.active.CompareAndSwap(false, true) {
		http.Error(w, "stream already active", http.StatusConflict)
		return
	}
	defer s.active.Store(false)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	if err := s.g.engine.StartStreaming(mode); err != nil {
		s.g.log.Error("start streaming failed", "error", err)
		return
	}
	defer s.g.engine.StopStreaming()
	s.g.log.Info("stream started", "mode", mode, "remote", r.RemoteAddr)

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.g.log.Warn("stream read failed", "error", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if err := s.g.engine.IngestFrame(data); err != nil {
			// Oversized datagrams are dropped; anything else ends the
			// stream.
			s.g.log.Warn("frame rejected", "size", len(data), "error", err)
			if errors.Is(err, player.ErrNotStreaming) {
				return
			}
		}
	}
}
