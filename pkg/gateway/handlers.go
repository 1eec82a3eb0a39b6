package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chimebox/chimebox/pkg/bus"
	"github.com/chimebox/chimebox/pkg/player"
	"github.com/chimebox/chimebox/pkg/transfer"
)

// Handler priorities: audio traffic outranks system commands so playback
// and transfer stay responsive when the command topic is busy.
const (
	priorityAudio    = 150
	priorityCommands = 100
)

func (g *Gateway) registerHandlers() error {
	if err := g.router.RegisterFunc(g.topics.Play, g.handlePlay, "audio-playback", priorityAudio); err != nil {
		return err
	}
	for _, t := range []string{g.topics.Request, g.topics.Chunk} {
		if err := g.router.RegisterFunc(t, g.handleTransfer, "audio-transfer", priorityAudio); err != nil {
			return err
		}
	}
	return g.router.RegisterFunc(g.topics.Commands, g.handleCommand, "system-commands", priorityCommands)
}

// playFile starts playback of name and reports the outcome on topic.
func (g *Gateway) playFile(ctx context.Context, name, topic string) bool {
	name = strings.TrimPrefix(name, "/")
	if err := g.engine.PlayFile(ctx, name); err != nil {
		g.log.Error("play failed", "file", name, "error", err)
		g.publish(topic, "error")
		return false
	}
	g.publish(topic, "playing")
	if g.settings != nil {
		if err := g.settings.SetLastPlayed(ctx, name); err != nil {
			g.log.Warn("persist last played failed", "error", err)
		}
	}
	return true
}

func (g *Gateway) handlePlay(ctx context.Context, _ bus.Publisher, msg *bus.Message) bool {
	g.playFile(ctx, string(msg.Payload), g.topics.AudioStatus)
	return true
}

func (g *Gateway) handleTransfer(ctx context.Context, _ bus.Publisher, msg *bus.Message) bool {
	m, err := transfer.ParseMessage(msg.Payload)
	if err != nil {
		g.log.Warn("unrecognized transfer message", "topic", msg.Topic, "error", err)
		return false
	}
	switch m.Kind {
	case transfer.KindFreeQuery:
		free, current, err := g.session.FreeSpace(ctx)
		if err != nil {
			g.log.Error("free-space query failed", "error", err)
			return true
		}
		g.publishBytes(g.topics.Response, transfer.FormatFree(free, current))

	case transfer.KindStart:
		if err := g.session.Start(ctx, m.Size, m.ID); err != nil {
			g.log.Error("transfer start failed", "error", err)
		}

	case transfer.KindChunk:
		if err := g.session.Chunk(ctx, m.Index, m.Data); err != nil {
			g.log.Warn("chunk outside session ignored", "index", m.Index)
		}

	case transfer.KindEnd:
		if err := g.session.End(ctx); err != nil {
			g.log.Warn("end outside session ignored")
		}

	case transfer.KindDownload:
		g.startDownload(m.URL, m.ID)
	}
	return true
}

// startDownload runs a pull-based transfer in the background. The bus
// handler returns immediately; sensor publishing stays suppressed until
// the download finishes.
func (g *Gateway) startDownload(url, id string) {
	if !g.downloading.CompareAndSwap(false, true) {
		g.log.Warn("download already in progress, ignoring", "url", url)
		return
	}
	go func() {
		defer g.downloading.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		name, size, err := g.downloader.Download(ctx, url, id)
		if err != nil {
			g.log.Error("download failed", "url", url, "error", err)
			g.publish(g.topics.AudioStatus, "download_failed:"+id)
			return
		}
		g.publish(g.topics.AudioStatus, fmt.Sprintf("download_complete:%s:%d", name, size))
	}()
}

func (g *Gateway) handleCommand(ctx context.Context, _ bus.Publisher, msg *bus.Message) bool {
	cmd := strings.ToLower(strings.TrimSpace(string(msg.Payload)))
	switch {
	case cmd == "stop_audio":
		g.engine.Stop()
		g.publish(g.topics.Status, "audio_stopped")

	case cmd == "list_files":
		infos, err := g.store.List(ctx)
		if err != nil {
			g.log.Error("list files failed", "error", err)
			g.publish(g.topics.Status, "no_files")
			return true
		}
		if len(infos) == 0 {
			g.publish(g.topics.Status, "no_files")
			return true
		}
		names := make([]string, 0, len(infos))
		for _, fi := range infos {
			names = append(names, fi.Name)
		}
		g.publish(g.topics.Files, strings.Join(names, "\n"))
		g.publish(g.topics.Status, "files_listed")

	case strings.HasPrefix(cmd, "volume="):
		v, err := strconv.ParseFloat(strings.TrimPrefix(cmd, "volume="), 64)
		if err != nil {
			g.publish(g.topics.Status, "bad_volume")
			return true
		}
		applied := g.engine.SetVolume(v)
		if g.settings != nil {
			if err := g.settings.SetVolume(ctx, applied); err != nil {
				g.log.Warn("persist volume failed", "error", err)
			}
		}
		g.publish(g.topics.Status, fmt.Sprintf("volume:%.2f", applied))

	case strings.HasPrefix(cmd, "play:"):
		g.playFile(ctx, strings.TrimPrefix(cmd, "play:"), g.topics.Status)

	case cmd == "status":
		audio := "stopped"
		if g.engine.State() != player.StateIdle {
			audio = "playing"
		}
		g.publish(g.topics.Status,
			fmt.Sprintf("online|audio:%s|volume:%.2f", audio, g.engine.Volume()))

	default:
		return false
	}
	return true
}
