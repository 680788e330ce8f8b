package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	api "github.com/oshokin/tourist-safety/internal/api/grpc/simulation"
	"github.com/oshokin/tourist-safety/internal/clock"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/service/common"
	"github.com/oshokin/tourist-safety/internal/service/simulator"
)

// Options configures a demo run.
type Options struct {
	// ConfigPath to YAML settings file; empty uses the embedded defaults.
	ConfigPath string
	// Scenario is the scenario to drive.
	Scenario string
	// Triggers are fired in order.
	Triggers []string
	// Step is the pause after every trigger.
	Step time.Duration
	// Virtual runs on a manual clock: pauses take no wall time.
	Virtual bool
	// Out receives the event lines and the final snapshot.
	Out io.Writer
}

// DefaultStep is used when Options.Step is not set.
const DefaultStep = 4 * time.Second

var errNoTriggers = errors.New("at least one trigger is required")

// Run drives the scenario and prints what happens.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "safety-demo")

	if len(opts.Triggers) == 0 {
		return errNoTriggers
	}

	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var sessionOpts []simulator.Option
	if opts.Virtual {
		sessionOpts = append(sessionOpts, simulator.WithClock(clock.NewManual(time.Now())))
	}

	session, err := simulator.New(ctx, cfg, sessionOpts...)
	if err != nil {
		return err
	}
	defer session.Close()

	sub, err := session.Subscribe(opts.Scenario)
	if err != nil {
		return err
	}
	defer sub.Close()

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	wait := realWait(ctx, session)
	if opts.Virtual {
		wait = session.Advance
	}

	for _, trigger := range opts.Triggers {
		result, err := session.Fire(ctx, opts.Scenario, trigger, actor)
		if err != nil {
			return err
		}

		if _, err = fmt.Fprintf(opts.Out, ">> %s %s: %s\n", opts.Scenario, trigger, result); err != nil {
			return err
		}

		if err = wait(opts.Step); err != nil {
			return err
		}

		if err = printEvents(opts.Out, sub); err != nil {
			return err
		}
	}

	snapshot, err := session.Snapshot(ctx, opts.Scenario)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(api.EncodeSnapshot(snapshot))
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}

	_, err = fmt.Fprintln(opts.Out, string(data))

	return err
}

// realWait runs the session timeline for d of wall time.
func realWait(ctx context.Context, session *simulator.Session) func(time.Duration) error {
	return func(d time.Duration) error {
		runCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		session.Run(runCtx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		return nil
	}
}

// printEvents writes every buffered event without blocking.
func printEvents(out io.Writer, sub *events.Subscription) error {
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}

			msg, known := api.EncodeEvent(event)
			if !known {
				continue
			}

			if _, err := fmt.Fprintln(out, api.FormatEvent(msg)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
