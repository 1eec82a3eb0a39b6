// Package gateway wires the device together: it registers the bus
// handlers for playback, transfer, and system commands, owns the task
// topology (decode tick, sensor publishing, session supervision), and
// persists settings across restarts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chimebox/chimebox/pkg/bus"
	"github.com/chimebox/chimebox/pkg/kv"
	"github.com/chimebox/chimebox/pkg/player"
	"github.com/chimebox/chimebox/pkg/stream"
	"github.com/chimebox/chimebox/pkg/transfer"
)

// Config tunes the gateway's periodic work. Zero values pick defaults.
type Config struct {
	// TopicPrefix roots the bus topic layout (defaults to "chimebox").
	TopicPrefix string

	// DecodeTick is the audio decode period (defaults to the stream
	// frame duration, 20ms).
	DecodeTick time.Duration

	// SensorTick is the sensor publish period (defaults to 2s).
	SensorTick time.Duration

	// SuperviseTick is the session supervision period (defaults to 5s).
	SuperviseTick time.Duration

	// StaleAfter aborts an upload session that has not seen a chunk for
	// this long (defaults to 30s).
	StaleAfter time.Duration
}

func (c *Config) applyDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "chimebox"
	}
	if c.DecodeTick == 0 {
		c.DecodeTick = stream.FrameDuration
	}
	if c.SensorTick == 0 {
		c.SensorTick = 2 * time.Second
	}
	if c.SuperviseTick == 0 {
		c.SuperviseTick = 5 * time.Second
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 30 * time.Second
	}
}

// Deps are the gateway's external collaborators.
type Deps struct {
	// Engine drives audio output. Required.
	Engine *player.Engine

	// Store holds the uploaded audio files. Required.
	Store transfer.Store

	// Publisher emits messages back to the bus. Required.
	Publisher bus.Publisher

	// Sensors supplies environmental readings. Optional; when nil the
	// sensor tick is disabled.
	Sensors SensorSource

	// Settings persists volume and last-played across restarts.
	// Optional.
	Settings *kv.Settings

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Gateway is the device's control plane.
type Gateway struct {
	cfg    Config
	topics Topics
	log    *slog.Logger

	engine   *player.Engine
	store    transfer.Store
	pub      bus.Publisher
	sensors  SensorSource
	settings *kv.Settings

	router     *bus.Router
	session    *transfer.Session
	downloader *transfer.Downloader

	// downloading gates sensor publishing during a pull-based transfer,
	// mirroring the chunked-upload suppression.
	downloading atomic.Bool
}

// New builds a gateway and registers its bus handlers.
func New(cfg Config, deps Deps) (*Gateway, error) {
	if deps.Engine == nil || deps.Store == nil || deps.Publisher == nil {
		return nil, errors.New("gateway: Engine, Store and Publisher are required")
	}
	cfg.applyDefaults()
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	g := &Gateway{
		cfg:      cfg,
		topics:   DefaultTopics(cfg.TopicPrefix),
		log:      log,
		engine:   deps.Engine,
		store:    deps.Store,
		pub:      deps.Publisher,
		sensors:  deps.Sensors,
		settings: deps.Settings,
	}
	g.router = bus.NewRouter(deps.Publisher)
	g.router.SetLogger(log)
	g.session = transfer.NewSession(deps.Store, &sessionEvents{g: g})
	g.session.SetLogger(log)
	g.downloader = transfer.NewDownloader(deps.Store, nil)
	g.downloader.SetLogger(log)

	g.engine.OnFinished(func(name string) {
		g.publish(g.topics.AudioStatus, "finished:"+name)
	})

	if err := g.registerHandlers(); err != nil {
		return nil, err
	}
	return g, nil
}

// Router exposes the dispatch router so the transport receive loop can
// feed inbound messages into it.
func (g *Gateway) Router() *bus.Router { return g.router }

// Session exposes the transfer session for status inspection.
func (g *Gateway) Session() *transfer.Session { return g.session }

// Topics returns the topic layout in use, for transport subscriptions.
func (g *Gateway) Topics() Topics { return g.topics }

// SubscribeTopics lists the topic filters the gateway consumes.
func (g *Gateway) SubscribeTopics() []string {
	return []string{g.topics.Request, g.topics.Chunk, g.topics.Play, g.topics.Commands}
}

// transferring reports whether an upload or download is in progress.
// Sensor publishing is suppressed while it is.
func (g *Gateway) transferring() bool {
	return g.session.Receiving() || g.downloading.Load()
}

func (g *Gateway) publish(topic, payload string) {
	g.publishBytes(topic, []byte(payload))
}

func (g *Gateway) publishBytes(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.pub.Publish(ctx, topic, payload); err != nil {
		g.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// Run restores persisted settings, announces the device, and drives the
// periodic work until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	g.restoreSettings(ctx)
	g.publish(g.topics.Status, "online")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.decodeLoop(ctx)
	}()
	if g.sensors != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.sensorLoop(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.superviseLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	g.engine.Stop()
	return nil
}

func (g *Gateway) restoreSettings(ctx context.Context) {
	if g.settings == nil {
		return
	}
	vol, err := g.settings.Volume(ctx, g.engine.Volume())
	if err != nil {
		g.log.Warn("restore volume failed", "error", err)
	}
	g.engine.SetVolume(vol)
}

func (g *Gateway) decodeLoop(ctx context.Context) {
	t := time.NewTicker(g.cfg.DecodeTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.engine.Tick()
		}
	}
}

func (g *Gateway) sensorLoop(ctx context.Context) {
	t := time.NewTicker(g.cfg.SensorTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if g.transferring() {
				continue
			}
			r, err := g.sensors.Read(ctx)
			if err != nil {
				g.log.Warn("sensor read failed", "error", err)
				continue
			}
			g.publish(g.topics.Temperature, fmt.Sprintf("%.2f", r.Temperature))
			g.publish(g.topics.Humidity, fmt.Sprintf("%.2f", r.Humidity))
			g.publish(g.topics.Pressure, fmt.Sprintf("%.2f", r.Pressure))
		}
	}
}

func (g *Gateway) superviseLoop(ctx context.Context) {
	t := time.NewTicker(g.cfg.SuperviseTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if g.session.Stale(g.cfg.StaleAfter) {
				g.log.Warn("upload session stale, aborting",
					"after", g.cfg.StaleAfter)
				g.session.Abort(ctx)
				g.publish(g.topics.AudioStatus, "upload_timeout")
			}
		}
	}
}

// sessionEvents forwards transfer-session events to the bus.
type sessionEvents struct {
	g *Gateway
}

func (e *sessionEvents) Ack(index uint64) {
	e.g.publishBytes(e.g.topics.Ack, transfer.FormatAck(index))
}

func (e *sessionEvents) Completed(name string, size int64) {
	e.g.publish(e.g.topics.AudioStatus, fmt.Sprintf("upload_complete:%s:%d", name, size))
}

func (e *sessionEvents) Failed(name string, err error) {
	e.g.log.Error("upload failed", "name", name, "error", err)
	e.g.publish(e.g.topics.AudioStatus, "upload_failed:"+name)
}
