package simulation

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scenario"
)

// Service abstracts the session operations the transport layer depends on.
type Service interface {
	Fire(ctx context.Context, name, trigger string, actor *safety.Actor) (machine.Result, error)
	Snapshot(ctx context.Context, name string) (scenario.Snapshot, error)
	Subscribe(name string) (*events.Subscription, error)
}

// Server implements SimulationService.
type Server struct {
	// service runs the scenarios.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Fire offers a trigger to a scenario. Ignored triggers are successful calls
// with applied set to false.
func (s *Server) Fire(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	name, trigger, actor := parseFireRequest(req)

	switch {
	case name == "":
		return nil, status.Error(codes.InvalidArgument, "scenario is required")
	case trigger == "":
		return nil, status.Error(codes.InvalidArgument, "trigger is required")
	}

	result, err := s.service.Fire(ctx, name, trigger, actor)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return encodeResult(result), nil
}

// GetSnapshot returns the view of one scenario.
func (s *Server) GetSnapshot(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario is required")
	}

	snapshot, err := s.service.Snapshot(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return EncodeSnapshot(snapshot), nil
}

// Watch streams scenario events until the client leaves or the session closes.
func (s *Server) Watch(req *wrapperspb.StringValue, stream WatchStream) error {
	ctx := stream.Context()

	sub, err := s.service.Subscribe(req.GetValue())
	if err != nil {
		return toStatus(ctx, err)
	}
	defer sub.Close()

	logger.DebugKV(ctx, "Watcher attached", "scenario", req.GetValue())

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}

			msg, known := EncodeEvent(event)
			if !known {
				continue
			}

			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus maps session errors to gRPC status errors.
func toStatus(ctx context.Context, err error) error {
	if errors.Is(err, scenario.ErrUnknownScenario) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	logger.ErrorKV(ctx, "Simulation call failed", "error", err)

	return status.Error(codes.Internal, "simulation failure")
}
