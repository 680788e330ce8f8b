//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/tourist-safety/internal/api/grpc/simulation"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/domain/safety"
)

// Client wraps the SimulationService with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the simulator server.
	conn grpc.ClientConnInterface
	// closer releases conn.
	closer io.Closer

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errScenarioRequired is returned when a scenario name is missing.
	errScenarioRequired = errors.New("scenario must be provided")
	// errTriggerRequired is returned when a trigger name is missing.
	errTriggerRequired = errors.New("trigger must be provided")
)

// Dial establishes a gRPC connection to the simulator server.
// Note: this uses insecure transport credentials; run on a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial simulator server: %w", err)
	}

	return NewClient(conn, conn, opts...), nil
}

// NewClient wraps an existing connection. closer may be nil.
func NewClient(conn grpc.ClientConnInterface, closer io.Closer, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		closer:      closer,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// Fire offers trigger to the named scenario on behalf of actor.
func (c *Client) Fire(
	ctx context.Context,
	scenario, trigger string,
	actor *safety.Actor,
) (simulation.FireReply, error) {
	switch {
	case scenario == "":
		return simulation.FireReply{}, errScenarioRequired
	case trigger == "":
		return simulation.FireReply{}, errTriggerRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply := new(structpb.Struct)

	err := c.conn.Invoke(callCtx, simulation.FireMethod, simulation.NewFireRequest(scenario, trigger, actor), reply)
	if err != nil {
		return simulation.FireReply{}, fmt.Errorf("fire trigger: %w", err)
	}

	return simulation.ParseFireReply(reply), nil
}

// GetSnapshot retrieves the snapshot document of the named scenario.
func (c *Client) GetSnapshot(ctx context.Context, scenario string) (*structpb.Struct, error) {
	if scenario == "" {
		return nil, errScenarioRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	reply := new(structpb.Struct)

	if err := c.conn.Invoke(callCtx, simulation.GetSnapshotMethod, wrapperspb.String(scenario), reply); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return reply, nil
}

// Watch streams the events of scenario (all when empty) into fn until ctx is
// done, the server ends the stream or fn fails. It runs without a call timeout.
func (c *Client) Watch(ctx context.Context, scenario string, fn func(*structpb.Struct) error) error {
	stream, err := c.conn.NewStream(ctx, &simulation.WatchStreamDesc, simulation.WatchMethod)
	if err != nil {
		return fmt.Errorf("open watch stream: %w", err)
	}

	if err = stream.SendMsg(wrapperspb.String(scenario)); err != nil {
		return fmt.Errorf("send watch request: %w", err)
	}

	if err = stream.CloseSend(); err != nil {
		return fmt.Errorf("close watch request: %w", err)
	}

	for {
		event := new(structpb.Struct)

		err = stream.RecvMsg(event)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil //nolint:nilerr // Leaving on cancellation is a normal end.
			}

			return fmt.Errorf("receive event: %w", err)
		}

		if err = fn(event); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
