package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chimebox/chimebox/cmd/chimebox/internal/config"
	"github.com/chimebox/chimebox/pkg/gateway"
	"github.com/chimebox/chimebox/pkg/transport"
)

var (
	sendBroker    string
	sendPrefix    string
	sendChunkSize int
	sendID        string
)

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Upload an audio file to a running gateway",
	Long: `Upload a file over the chunked transfer protocol: query free space,
announce the size, then send acknowledged chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if sendBroker == "" {
			sendBroker = cfg.Broker
		}
		if sendPrefix == "" {
			sendPrefix = cfg.TopicPrefix
		}
		return send(cmd.Context(), args[0])
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendBroker, "broker", "", "broker address (default: from config)")
	sendCmd.Flags().StringVar(&sendPrefix, "prefix", "", "topic prefix (default: from config)")
	sendCmd.Flags().IntVar(&sendChunkSize, "chunk-size", 4096, "chunk payload size in bytes")
	sendCmd.Flags().StringVar(&sendID, "id", "", "upload target id (default: gateway's standard target)")
	rootCmd.AddCommand(sendCmd)
}

const ackTimeout = 5 * time.Second

func send(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	topics := gateway.DefaultTopics(sendPrefix)

	acks := make(chan uint64, 16)
	frees := make(chan string, 1)
	dialer := &transport.Dialer{
		ID: "chimebox-send-" + uuid.NewString()[:8],
		Handler: func(_ context.Context, topic string, payload []byte) {
			switch topic {
			case topics.Ack:
				if n, ok := parseAck(payload); ok {
					acks <- n
				}
			case topics.Response:
				select {
				case frees <- string(payload):
				default:
				}
			}
		},
	}
	conn, err := dialer.Dial(ctx, sendBroker)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()
	if err := conn.Subscribe(ctx, transport.AtLeastOnce, topics.Ack, topics.Response); err != nil {
		return err
	}

	// Free-space check before committing to the upload.
	if err := conn.Publish(ctx, topics.Request, []byte("REQUEST_FREE_SPACE")); err != nil {
		return err
	}
	select {
	case reply := <-frees:
		free, err := parseFree(reply)
		if err != nil {
			return err
		}
		fmt.Printf("gateway free space: %d bytes\n", free)
		if free < int64(len(data)) {
			fmt.Println("note: file exceeds free space, gateway will reclaim")
		}
	case <-time.After(3 * time.Second):
		return fmt.Errorf("gateway did not answer free-space query")
	case <-ctx.Done():
		return ctx.Err()
	}

	start := fmt.Sprintf("START:%d", len(data))
	if sendID != "" {
		start += ":" + sendID
	}
	if err := conn.Publish(ctx, topics.Chunk, []byte(start)); err != nil {
		return err
	}

	total := (len(data) + sendChunkSize - 1) / sendChunkSize
	for i := 0; i < total; i++ {
		lo := i * sendChunkSize
		hi := min(lo+sendChunkSize, len(data))
		header := fmt.Sprintf("CHUNK:%d:%d:", i, total)
		if err := conn.Publish(ctx, topics.Chunk, append([]byte(header), data[lo:hi]...)); err != nil {
			return err
		}
		if err := awaitAck(ctx, acks, uint64(i)); err != nil {
			return err
		}
		fmt.Printf("chunk %d/%d acknowledged\n", i+1, total)
	}

	if err := conn.Publish(ctx, topics.Chunk, []byte("END")); err != nil {
		return err
	}
	fmt.Printf("uploaded %s (%d bytes, %d chunks)\n", file, len(data), total)
	return nil
}

func awaitAck(ctx context.Context, acks <-chan uint64, want uint64) error {
	deadline := time.After(ackTimeout)
	for {
		select {
		case n := <-acks:
			if n == want {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("no ACK for chunk %d", want)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseAck(payload []byte) (uint64, bool) {
	s, ok := strings.CutPrefix(string(payload), "ACK:")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

func parseFree(reply string) (int64, error) {
	rest, ok := strings.CutPrefix(reply, "FREE:")
	if !ok {
		return 0, fmt.Errorf("unexpected free-space reply %q", reply)
	}
	freeStr, _, _ := strings.Cut(rest, ":")
	free, err := strconv.ParseInt(freeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected free-space reply %q", reply)
	}
	return free, nil
}
