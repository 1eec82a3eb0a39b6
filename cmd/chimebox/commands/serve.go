package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chimebox/chimebox/cmd/chimebox/internal/config"
	"github.com/chimebox/chimebox/pkg/audio/pcm"
	"github.com/chimebox/chimebox/pkg/gateway"
	"github.com/chimebox/chimebox/pkg/kv"
	"github.com/chimebox/chimebox/pkg/player"
	"github.com/chimebox/chimebox/pkg/storage"
	"github.com/chimebox/chimebox/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the audio gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// nullSink discards decoded audio. The hardware output driver replaces
// it on a real device.
type nullSink struct{}

func (nullSink) Configure(f pcm.Format) error {
	slog.Debug("audio output configured", "format", f)
	return nil
}

func (nullSink) WritePCM(b []byte) (int, error) { return len(b), nil }

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := slog.Default()

	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return err
	}
	store, err := storage.NewFlash(cfg.Storage.Dir, cfg.Storage.Capacity)
	if err != nil {
		return err
	}

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.SettingsDir})
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer db.Close()

	engine := player.New(nullSink{}, store)

	// The dialer's handler closes over gw; the broker cannot deliver
	// anything before the subscriptions below, by which point gw is set.
	var gw *gateway.Gateway
	dialer := &transport.Dialer{
		ID:       cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Handler: func(ctx context.Context, topic string, payload []byte) {
			gw.Router().Dispatch(ctx, topic, payload)
		},
		OnConnectError: func(err error) {
			log.Warn("broker connection failed", "error", err)
		},
		OnConnectionUp: func() {
			log.Info("broker connected", "broker", cfg.Broker)
		},
	}
	conn, err := dialer.Dial(ctx, cfg.Broker)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	gw, err = gateway.New(gateway.Config{TopicPrefix: cfg.TopicPrefix}, gateway.Deps{
		Engine:    engine,
		Store:     store,
		Publisher: busPublisher{conn},
		Settings:  kv.NewSettings(db),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	if err := conn.Subscribe(ctx, transport.AtLeastOnce, gw.SubscribeTopics()...); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/stream", gw.StreamServer())
	srv := &http.Server{Addr: cfg.StreamListen, Handler: mux}
	go func() {
		log.Info("stream ingest listening", "addr", cfg.StreamListen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("stream server failed", "error", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.Info("gateway running", "topics", cfg.TopicPrefix, "storage", cfg.Storage.Dir)
	return gw.Run(ctx)
}

// busPublisher adapts a transport connection to the bus Publisher
// interface.
type busPublisher struct {
	conn *transport.Conn
}

func (p busPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.conn.Publish(ctx, topic, payload)
}
