package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadMessage is returned for payloads that do not parse as any known
// transfer-protocol message.
var ErrBadMessage = errors.New("transfer: malformed message")

// Kind identifies a transfer-protocol message.
type Kind int

const (
	KindStart Kind = iota + 1 // START:<size>[:<id>]
	KindChunk                 // CHUNK:<index>:<reserved>:<raw bytes>
	KindEnd                   // END
	KindFreeQuery             // REQUEST_FREE_SPACE
	KindDownload              // <url>|<id>
)

// Message is a parsed transfer-protocol payload. Only the fields relevant
// to the Kind are set.
type Message struct {
	Kind  Kind
	Size  int64  // Start: expected total size in bytes
	ID    string // Start, Download: destination id (may be empty for Start)
	Index uint64 // Chunk: sequence index, echoed in the ACK
	Data  []byte // Chunk: raw payload bytes, taken verbatim
	URL   string // Download: source URL
}

// ParseMessage parses a bus payload into a transfer-protocol message.
//
// Headers are colon-delimited ASCII; for CHUNK everything after the second
// colon past the prefix is raw binary taken verbatim, so Data may alias the
// input slice.
func ParseMessage(payload []byte) (Message, error) {
	switch {
	case bytes.Equal(payload, []byte("END")):
		return Message{Kind: KindEnd}, nil

	case bytes.Equal(payload, []byte("REQUEST_FREE_SPACE")):
		return Message{Kind: KindFreeQuery}, nil

	case bytes.HasPrefix(payload, []byte("START:")):
		rest := string(payload[len("START:"):])
		sizeStr, id, _ := strings.Cut(rest, ":")
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return Message{}, fmt.Errorf("%w: bad START size %q", ErrBadMessage, sizeStr)
		}
		return Message{Kind: KindStart, Size: size, ID: id}, nil

	case bytes.HasPrefix(payload, []byte("CHUNK:")):
		rest := payload[len("CHUNK:"):]
		i := bytes.IndexByte(rest, ':')
		if i < 0 {
			return Message{}, fmt.Errorf("%w: CHUNK missing index delimiter", ErrBadMessage)
		}
		index, err := strconv.ParseUint(string(rest[:i]), 10, 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: bad CHUNK index %q", ErrBadMessage, rest[:i])
		}
		rest = rest[i+1:]
		j := bytes.IndexByte(rest, ':')
		if j < 0 {
			return Message{}, fmt.Errorf("%w: CHUNK missing reserved delimiter", ErrBadMessage)
		}
		// The reserved field is carried for wire compatibility and ignored.
		return Message{Kind: KindChunk, Index: index, Data: rest[j+1:]}, nil
	}

	// Download-by-URL: <url>|<id>.
	if s := string(payload); strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		url, id, ok := strings.Cut(s, "|")
		if !ok || url == "" {
			return Message{}, fmt.Errorf("%w: download command missing id separator", ErrBadMessage)
		}
		return Message{Kind: KindDownload, URL: url, ID: id}, nil
	}

	return Message{}, fmt.Errorf("%w: unrecognized payload", ErrBadMessage)
}

// FormatAck renders the per-chunk acknowledgement payload.
func FormatAck(index uint64) []byte {
	return []byte("ACK:" + strconv.FormatUint(index, 10))
}

// FormatFree renders the free-space reply payload.
func FormatFree(freeBytes, currentFileBytes int64) []byte {
	return []byte("FREE:" + strconv.FormatInt(freeBytes, 10) + ":" + strconv.FormatInt(currentFileBytes, 10))
}
