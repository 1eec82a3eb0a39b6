// Package player implements the playback engine: a mode state machine
// (idle, file playback, streaming) driven by a periodic decode tick, with
// a bounded-acquisition lock so audio output never stalls behind a command
// issued from another goroutine.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chimebox/chimebox/pkg/audio/adpcm"
	"github.com/chimebox/chimebox/pkg/audio/opusdec"
	"github.com/chimebox/chimebox/pkg/audio/pcm"
	"github.com/chimebox/chimebox/pkg/buffer"
	"github.com/chimebox/chimebox/pkg/storage"
	"github.com/chimebox/chimebox/pkg/stream"
)

// ErrNotStreaming is returned when a frame arrives with no stream session
// active.
var ErrNotStreaming = errors.New("player: not streaming")

// fileFormat is the output configuration used for file playback and
// restored when streaming stops.
const fileFormat = pcm.L16Mono44K1

// tickLockTimeout bounds how long the decode tick waits for the engine
// lock before skipping the tick.
const tickLockTimeout = 5 * time.Millisecond

// State is the engine mode. Exactly one is active at a time.
type State int

const (
	StateIdle State = iota
	StatePlayingFile
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlayingFile:
		return "playing_file"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// StreamMode selects the streaming frame decoder.
type StreamMode int

const (
	// ModeOpus streams Opus frames at 48 kHz.
	ModeOpus StreamMode = iota
	// ModeADPCM streams the low-bitrate predictive codec at 16 kHz.
	ModeADPCM
)

// Status is a point-in-time snapshot of the engine for status replies.
type Status struct {
	State   State
	File    string
	Volume  float64
	PreRoll bool // streaming only: pre-roll complete
}

// Engine is the playback engine. All public methods serialize on one
// non-reentrant lock; the decode tick acquires it with a bounded wait.
type Engine struct {
	sink  pcm.Sink
	store storage.FileStore
	log   *slog.Logger

	buf      *buffer.StreamBuffer
	producer *stream.Producer

	lock *timedMutex

	state     State
	gain      float64
	chain     *fileChain
	consumer  *stream.Consumer
	dec       stream.FrameDecoder
	streaming atomic.Bool

	onFinished func(name string)
}

// New creates an engine driving sink from store. The streaming ring buffer
// is created internally at the default capacity.
func New(sink pcm.Sink, store storage.FileStore) *Engine {
	buf := buffer.NewStream(stream.DefaultBufferSize)
	return &Engine{
		sink:     sink,
		store:    store,
		log:      slog.Default(),
		buf:      buf,
		producer: stream.NewProducer(buf),
		lock:     newTimedMutex(),
		gain:     1.0,
	}
}

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(log *slog.Logger) { e.log = log }

// OnFinished sets the callback invoked (outside the engine lock) when file
// playback reaches end of file. Set once during wiring, before playback.
func (e *Engine) OnFinished(fn func(name string)) { e.onFinished = fn }

// State returns the current mode.
func (e *Engine) State() State {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state
}

// Snapshot returns a status snapshot for command replies.
func (e *Engine) Snapshot() Status {
	e.lock.Lock()
	defer e.lock.Unlock()
	st := Status{State: e.state, Volume: e.gain}
	if e.chain != nil {
		st.File = e.chain.name
	}
	if e.consumer != nil {
		st.PreRoll = e.consumer.PreRollComplete()
	}
	return st
}

// SetVolume clamps g to [0.0, 1.0], applies it to the live output, and
// returns the applied value. The setting is independent of what is
// playing.
func (e *Engine) SetVolume(g float64) float64 {
	g = pcm.ClampGain(g)
	e.lock.Lock()
	e.gain = g
	e.lock.Unlock()
	return g
}

// Volume returns the current output gain.
func (e *Engine) Volume() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.gain
}

// PlayFile starts playback of the named stored file, stopping any prior
// mode first. The format is chosen by extension (.wav, .mp3).
func (e *Engine) PlayFile(ctx context.Context, name string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.stopLocked()

	src, err := e.store.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("player: open %s: %w", name, err)
	}
	chain, err := newFileChain(name, src)
	if err != nil {
		src.Close()
		return err
	}
	if err := e.sink.Configure(chain.format); err != nil {
		chain.close()
		return fmt.Errorf("player: configure output: %w", err)
	}
	e.chain = chain
	e.state = StatePlayingFile
	e.log.Info("player: file playback started", "name", name, "format", chain.format.String())
	return nil
}

// Stop halts playback or streaming and releases all chain resources. It
// returns once everything is released.
func (e *Engine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.stopLocked()
}

// StartStreaming switches to stream playback: tears down file state,
// constructs the frame decoder for mode, reconfigures the output rate,
// discards stale ring-buffer content, and clears the pre-roll latch — all
// before any decode tick can observe the new state.
func (e *Engine) StartStreaming(mode StreamMode) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.stopLocked()

	var (
		dec    stream.FrameDecoder
		format pcm.Format
	)
	switch mode {
	case ModeOpus:
		format = pcm.L16Mono48K
		d, err := opusdec.New(format)
		if err != nil {
			return fmt.Errorf("player: start streaming: %w", err)
		}
		dec = d
	case ModeADPCM:
		format = pcm.L16Mono16K
		dec = &adpcmFrameDecoder{dec: adpcm.NewDecoder()}
	default:
		return fmt.Errorf("player: unknown stream mode %d", mode)
	}

	if err := e.sink.Configure(format); err != nil {
		dec.Close()
		return fmt.Errorf("player: configure output: %w", err)
	}

	silence := format.SilenceFrame(stream.FrameDuration)
	e.dec = dec
	e.consumer = stream.NewConsumer(e.buf, dec, silence)
	e.consumer.SetLogger(e.log)
	e.consumer.Reset()
	e.state = StateStreaming
	e.streaming.Store(true)
	e.log.Info("player: streaming started", "format", format.String())
	return nil
}

// StopStreaming tears down the stream session, restores the file-playback
// output rate, and writes one frame of silence to avoid an audible pop.
// It is a no-op outside streaming.
func (e *Engine) StopStreaming() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.state != StateStreaming {
		return
	}
	e.stopLocked()
}

// IngestFrame feeds one compressed datagram from the network task into the
// ring buffer. Outside a stream session frames are rejected with
// ErrNotStreaming; the gate is lock-free so the network task never
// contends with the decode tick.
func (e *Engine) IngestFrame(datagram []byte) error {
	if !e.streaming.Load() {
		return ErrNotStreaming
	}
	return e.producer.Ingest(datagram)
}

// Tick runs one decode step. It must be called from a single goroutine at
// the output frame cadence. If the engine lock cannot be acquired within
// the bounded wait, the tick is skipped rather than stalling audio.
func (e *Engine) Tick() {
	if !e.lock.LockTimeout(tickLockTimeout) {
		return
	}
	finished := e.tickLocked()
	e.lock.Unlock()

	if finished != "" && e.onFinished != nil {
		e.onFinished(finished)
	}
}

// tickLocked performs the per-tick work and returns the filename if file
// playback just finished.
func (e *Engine) tickLocked() string {
	switch e.state {
	case StatePlayingFile:
		frame, err := e.chain.readFrame()
		if err != nil {
			name := e.chain.name
			if !errors.Is(err, io.EOF) {
				e.log.Warn("player: file read failed", "name", name, "err", err)
			}
			e.stopLocked()
			return name
		}
		e.writeOut(frame)

	case StateStreaming:
		e.writeOut(e.consumer.Next())
	}
	return ""
}

// writeOut applies the output gain and pushes samples to the sink. A
// partial hardware write is logged but non-fatal.
func (e *Engine) writeOut(frame []byte) {
	pcm.ApplyGain(frame, e.gain)
	n, err := e.sink.WritePCM(frame)
	if err != nil {
		e.log.Warn("player: sink write failed", "err", err)
	} else if n < len(frame) {
		e.log.Warn("player: partial sink write", "wrote", n, "want", len(frame))
	}
}

// stopLocked releases whatever mode is active. Streaming teardown restores
// the file output rate and writes a silence frame.
func (e *Engine) stopLocked() {
	switch e.state {
	case StatePlayingFile:
		if err := e.chain.close(); err != nil {
			e.log.Warn("player: close chain failed", "name", e.chain.name, "err", err)
		}
		e.chain = nil

	case StateStreaming:
		e.streaming.Store(false)
		e.dec.Close()
		e.dec = nil
		e.consumer = nil
		if err := e.sink.Configure(fileFormat); err != nil {
			e.log.Warn("player: restore output rate failed", "err", err)
		}
		if _, err := e.sink.WritePCM(fileFormat.SilenceFrame(stream.FrameDuration)); err != nil {
			e.log.Warn("player: silence frame write failed", "err", err)
		}
		e.log.Info("player: streaming stopped")
	}
	e.state = StateIdle
}

// adpcmFrameDecoder adapts the predictive codec to the stream decoder
// boundary. Decoding raw codes cannot fail; desync is inaudible to the
// decoder itself.
type adpcmFrameDecoder struct {
	dec *adpcm.Decoder
}

func (a *adpcmFrameDecoder) Decode(frame []byte) ([]byte, error) {
	return pcm.SamplesToBytes(a.dec.Decode(frame)), nil
}

func (a *adpcmFrameDecoder) Close() error { return nil }
