package transfer

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Message
	}{
		{"end", []byte("END"), Message{Kind: KindEnd}},
		{"free query", []byte("REQUEST_FREE_SPACE"), Message{Kind: KindFreeQuery}},
		{"start", []byte("START:1024"), Message{Kind: KindStart, Size: 1024}},
		{"start with id", []byte("START:1024:alarm.wav"),
			Message{Kind: KindStart, Size: 1024, ID: "alarm.wav"}},
		{"start zero", []byte("START:0"), Message{Kind: KindStart, Size: 0}},
		{"download", []byte("http://host/a.wav|alarm.wav"),
			Message{Kind: KindDownload, URL: "http://host/a.wav", ID: "alarm.wav"}},
		{"download https", []byte("https://host/a.wav|x"),
			Message{Kind: KindDownload, URL: "https://host/a.wav", ID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.payload)
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.want.Kind || got.Size != tt.want.Size ||
				got.ID != tt.want.ID || got.URL != tt.want.URL {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseChunk(t *testing.T) {
	// The raw tail is binary and may itself contain colons.
	raw := []byte{0x00, ':', 0xFF, ':', 0x7F}
	payload := append([]byte("CHUNK:42:0:"), raw...)

	got, err := ParseMessage(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindChunk {
		t.Fatalf("kind = %v, want KindChunk", got.Kind)
	}
	if got.Index != 42 {
		t.Fatalf("index = %d, want 42", got.Index)
	}
	if !bytes.Equal(got.Data, raw) {
		t.Fatalf("data = %v, want %v", got.Data, raw)
	}
}

func TestParseChunkEmptyPayload(t *testing.T) {
	got, err := ParseMessage([]byte("CHUNK:0:0:"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Data) != 0 {
		t.Fatalf("expected empty data, got %v", got.Data)
	}
}

func TestParseMessageErrors(t *testing.T) {
	bad := [][]byte{
		[]byte(""),
		[]byte("START:"),
		[]byte("START:-5"),
		[]byte("START:abc"),
		[]byte("CHUNK:"),
		[]byte("CHUNK:1"),
		[]byte("CHUNK:x:0:data"),
		[]byte("http://host/no-separator"),
		[]byte("ENDING"),
		[]byte("hello"),
	}
	for _, payload := range bad {
		if _, err := ParseMessage(payload); !errors.Is(err, ErrBadMessage) {
			t.Errorf("ParseMessage(%q): expected ErrBadMessage, got %v", payload, err)
		}
	}
}

func TestFormatAck(t *testing.T) {
	if got := string(FormatAck(7)); got != "ACK:7" {
		t.Fatalf("got %q, want %q", got, "ACK:7")
	}
}

func TestFormatFree(t *testing.T) {
	if got := string(FormatFree(4096, 128)); got != "FREE:4096:128" {
		t.Fatalf("got %q, want %q", got, "FREE:4096:128")
	}
}
