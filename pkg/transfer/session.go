// Package transfer implements the chunked upload protocol that moves audio
// payloads onto the device over the message bus: a START/CHUNK/END session
// state machine with per-chunk acknowledgements, a free-space query, and a
// pull-based download path for HTTP sources.
//
// A Session is single-owner: only the bus receive loop feeds it protocol
// messages. The lock exists so status queries (FreeSpace, Stale) can be
// issued from other goroutines.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chimebox/chimebox/pkg/storage"
)

// ErrNotReceiving is returned when a CHUNK or END arrives with no session
// in progress. Callers on the bus path log and ignore it.
var ErrNotReceiving = errors.New("transfer: no session in progress")

// DefaultTarget is the destination path used when a START carries no id.
const DefaultTarget = "upload.wav"

// openRetryDelay is the pause before the single best-effort reopen attempt.
const openRetryDelay = 100 * time.Millisecond

// Store is the storage the transfer protocol writes into: a FileStore with
// a bounded capacity. *storage.Flash satisfies it.
type Store interface {
	storage.FileStore

	// Free returns the number of bytes still available for writing.
	Free() int64

	// Format deletes all stored files. It is the last-resort recovery for
	// open failures.
	Format(ctx context.Context) error
}

// Events receives transfer lifecycle notifications. Implementations
// typically publish them back onto the bus.
type Events interface {
	// Ack is emitted after each chunk write so the sender can flow-control.
	Ack(index uint64)
	// Completed is emitted when END closes a session successfully.
	Completed(name string, size int64)
	// Failed is emitted when a session or download fails terminally.
	Failed(name string, err error)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) Ack(uint64)              {}
func (NopEvents) Completed(string, int64) {}
func (NopEvents) Failed(string, error)    {}

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateReceiving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Session is the chunked-upload state machine. It owns at most one open
// output handle at a time; starting a new session discards any file
// previously written at the same destination.
type Session struct {
	store  Store
	events Events
	log    *slog.Logger

	retryDelay time.Duration

	mu       sync.Mutex
	state    State
	name     string
	expected int64
	received int64
	w        io.WriteCloser
	last     time.Time
}

// NewSession creates a session over the given store. Events may be nil.
func NewSession(store Store, events Events) *Session {
	if events == nil {
		events = NopEvents{}
	}
	return &Session{
		store:      store,
		events:     events,
		log:        slog.Default(),
		retryDelay: openRetryDelay,
	}
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(log *slog.Logger) { s.log = log }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Receiving reports whether an upload is in progress.
func (s *Session) Receiving() bool { return s.State() == StateReceiving }

// Progress returns the bytes received so far and the expected total for
// the current session. Both are zero when idle.
func (s *Session) Progress() (received, expected int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReceiving {
		return 0, 0
	}
	return s.received, s.expected
}

// TargetName derives the destination path from a correlation id.
// An empty id maps to DefaultTarget; a leading slash is stripped.
func TargetName(id string) string {
	id = strings.TrimPrefix(id, "/")
	if id == "" {
		return DefaultTarget
	}
	return id
}

// Start begins a new session expecting size bytes. Any session already in
// progress is discarded first, so a repeated START is an idempotent
// restart. The pre-existing file at the destination is deleted before the
// output handle opens.
func (s *Session) Start(ctx context.Context, size int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReceiving {
		s.log.Warn("transfer: START while receiving, discarding partial upload",
			"name", s.name, "received", s.received)
		s.discardLocked(ctx)
	}

	name := TargetName(id)
	if err := s.store.Delete(ctx, name); err != nil {
		s.log.Warn("transfer: delete existing file failed", "name", name, "err", err)
	}

	w, err := s.openWithRecovery(ctx, name)
	if err != nil {
		err = fmt.Errorf("transfer: open %s: %w", name, err)
		s.events.Failed(name, err)
		return err
	}

	s.state = StateReceiving
	s.name = name
	s.expected = size
	s.received = 0
	s.w = w
	s.last = time.Now()
	s.log.Info("transfer: session started", "name", name, "expected", size)
	return nil
}

// Chunk appends raw bytes to the current session and emits an ACK tagged
// with the chunk index. A write error or short write is logged but does
// not abort the session. Outside a session it returns ErrNotReceiving.
func (s *Session) Chunk(ctx context.Context, index uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReceiving {
		s.log.Warn("transfer: CHUNK outside session, ignored", "index", index)
		return ErrNotReceiving
	}

	n, err := s.w.Write(data)
	if err != nil {
		s.log.Warn("transfer: chunk write failed", "index", index, "err", err)
	} else if n != len(data) {
		s.log.Warn("transfer: short chunk write",
			"index", index, "wrote", n, "want", len(data))
	}
	s.received += int64(n)
	s.last = time.Now()
	s.events.Ack(index)
	return nil
}

// End flushes and closes the session, transitions to Idle, and emits a
// completion notification. Outside a session it returns ErrNotReceiving.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReceiving {
		s.log.Warn("transfer: END outside session, ignored")
		return ErrNotReceiving
	}

	name, size := s.name, s.received
	err := s.w.Close()
	s.w = nil
	s.state = StateIdle
	if err != nil {
		err = fmt.Errorf("transfer: close %s: %w", name, err)
		s.events.Failed(name, err)
		return err
	}
	if size != s.expected {
		s.log.Warn("transfer: size mismatch at END",
			"name", name, "received", size, "expected", s.expected)
	}
	s.log.Info("transfer: session complete", "name", name, "size", size)
	s.events.Completed(name, size)
	return nil
}

// Abort closes the session and removes the partial file. It is a no-op
// when idle.
func (s *Session) Abort(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReceiving {
		return
	}
	s.log.Warn("transfer: session aborted", "name", s.name, "received", s.received)
	s.discardLocked(ctx)
}

// discardLocked closes the open handle and deletes the partial file.
func (s *Session) discardLocked(ctx context.Context) {
	if s.w != nil {
		if err := s.w.Close(); err != nil {
			s.log.Warn("transfer: close on discard failed", "name", s.name, "err", err)
		}
		s.w = nil
	}
	if err := s.store.Delete(ctx, s.name); err != nil {
		s.log.Warn("transfer: delete partial failed", "name", s.name, "err", err)
	}
	s.state = StateIdle
	s.received = 0
	s.expected = 0
}

// FreeSpace answers the free-space query: available storage capacity and
// the size of the current destination file. It does not mutate any upload
// state.
func (s *Session) FreeSpace(ctx context.Context) (freeBytes, currentFileBytes int64, err error) {
	s.mu.Lock()
	name := s.name
	s.mu.Unlock()
	if name == "" {
		name = DefaultTarget
	}
	fi, err := s.store.Stat(ctx, name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file yet; current size is zero.
	case err != nil:
		return 0, 0, fmt.Errorf("transfer: stat %s: %w", name, err)
	default:
		currentFileBytes = fi.Size
	}
	return s.store.Free(), currentFileBytes, nil
}

// Stale reports whether a session is in progress and has received no chunk
// within d. Enforcement (aborting) is the caller's policy.
func (s *Session) Stale(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateReceiving && time.Since(s.last) > d
}

// openWithRecovery opens the destination for writing with the best-effort
// recovery ladder: one retry after a short delay, then a one-time
// format-and-retry escalation.
func (s *Session) openWithRecovery(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.store.Write(ctx, name)
	if err == nil {
		return w, nil
	}
	s.log.Warn("transfer: open failed, retrying", "name", name, "err", err)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.retryDelay):
	}
	w, err = s.store.Write(ctx, name)
	if err == nil {
		return w, nil
	}

	s.log.Warn("transfer: reopen failed, formatting storage", "name", name, "err", err)
	if ferr := s.store.Format(ctx); ferr != nil {
		return nil, fmt.Errorf("format after open failure: %w", ferr)
	}
	return s.store.Write(ctx, name)
}
