package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/service/common"
)

// Options configures how safety-ctl reaches the server.
type Options struct {
	// ConfigPath to YAML settings file; empty uses the embedded defaults.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Out receives command output.
	Out io.Writer
}

// FireOptions configures a trigger push.
type FireOptions struct {
	Options

	Scenario string
	Trigger  string
	// Retry keeps pushing while the server is unreachable, until ctx is done.
	Retry bool
}

// defaultPushInterval defines retry delay when pushing a trigger to the server.
const defaultPushInterval = 1 * time.Second

// snapshotFormat renders snapshot documents for terminals.
var snapshotFormat = protojson.MarshalOptions{Multiline: true, Indent: "  "}

// Fire sends one trigger and prints the outcome. Ignored triggers are not errors.
func Fire(ctx context.Context, opts *FireOptions) error {
	ctx = logger.WithName(ctx, "safety-ctl")

	client, cfg, err := connect(ctx, &opts.Options)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Pushing trigger",
		"scenario", opts.Scenario, "trigger", opts.Trigger, "actor", actor.String(), "timeout", cfg.Timeout.String())

	// attempt tries once to deliver the trigger, returns (completed, error).
	attempt := func() (bool, error) {
		reply, err := client.Fire(ctx, opts.Scenario, opts.Trigger, actor)
		if err == nil {
			_, err = fmt.Fprintf(opts.Out, "%s %s: %s\n", opts.Scenario, opts.Trigger, reply)

			return true, err
		}

		if opts.Retry && status.Code(err) == codes.Unavailable {
			logger.WarnKV(ctx, "Server unavailable, retrying", "error", err)

			return false, nil
		}

		return false, err
	}

	if done, err := attempt(); err != nil || done {
		return err
	}

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

// Snapshot prints the snapshot document of scenario as JSON.
func Snapshot(ctx context.Context, opts *Options, scenario string) error {
	ctx = logger.WithName(ctx, "safety-ctl")

	client, _, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.GetSnapshot(ctx, scenario)
	if err != nil {
		return err
	}

	data, err := snapshotFormat.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}

	_, err = fmt.Fprintln(opts.Out, string(data))

	return err
}

// connect loads settings and dials the server.
func connect(ctx context.Context, opts *Options) (*common.Client, *config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, nil, err
	}

	return client, cfg, nil
}
