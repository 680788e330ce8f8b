package watcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/tourist-safety/internal/api/grpc/simulation"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/service/common"
)

// Options controls the watcher.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// Scenario filters the stream; empty follows every scenario.
	Scenario string
	// ReconnectInterval is the pause before reopening a broken stream.
	ReconnectInterval time.Duration
	// Out receives one line per event.
	Out io.Writer
}

// DefaultReconnectInterval is used when Options.ReconnectInterval is not set.
const DefaultReconnectInterval = 2 * time.Second

// Run prints events until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "safety-watch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching events", "server_address", serverAddress, "scenario", opts.Scenario)

	printEvent := func(event *structpb.Struct) error {
		_, err := fmt.Fprintln(opts.Out, api.FormatEvent(event))

		return err
	}

	ticker := time.NewTicker(opts.ReconnectInterval)
	defer ticker.Stop()

	for {
		if err = client.Watch(ctx, opts.Scenario, printEvent); err != nil {
			logger.ErrorKV(ctx, "Event stream broken", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}
