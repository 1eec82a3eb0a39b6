package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chimebox/chimebox/pkg/player"
)

func wsURL(srv *httptest.Server, query string) string {
	u := strings.Replace(srv.URL, "http", "ws", 1)
	if query != "" {
		u += "?" + query
	}
	return u
}

func waitForState(t *testing.T, r *testRig, want player.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.g.engine.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("engine state = %v, want %v", r.g.engine.State(), want)
}

func TestStreamIngest(t *testing.T) {
	r := newTestRig(t)
	srv := httptest.NewServer(r.g.StreamServer())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "codec=adpcm"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForState(t, r, player.StateStreaming)

	frame := make([]byte, 320)
	for i := range frame {
		frame[i] = byte(i)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	ws.Close()
	waitForState(t, r, player.StateIdle)
}

func TestStreamIngestRejectsUnknownCodec(t *testing.T) {
	r := newTestRig(t)
	srv := httptest.NewServer(r.g.StreamServer())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?codec=flac")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamIngestSingleConnection(t *testing.T) {
	r := newTestRig(t)
	srv := httptest.NewServer(r.g.StreamServer())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitForState(t, r, player.StateStreaming)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err == nil {
		t.Fatal("second stream connection should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("second connection response = %+v, want 409", resp)
	}
}
