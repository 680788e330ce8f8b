package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scenario"
)

var errTestBroken = errors.New("test broken")

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	// fired records the last Fire call.
	fired struct {
		name, trigger string
		actor         *safety.Actor
	}
	// result is returned by Fire.
	result machine.Result
	// err is returned by every call when set.
	err error
	// snapshot is returned by Snapshot.
	snapshot scenario.Snapshot
	// bus backs Subscribe.
	bus *events.Bus
}

// Fire records the call and returns the canned result.
func (f *fakeService) Fire(_ context.Context, name, trigger string, actor *safety.Actor) (machine.Result, error) {
	f.fired.name, f.fired.trigger, f.fired.actor = name, trigger, actor

	return f.result, f.err
}

// Snapshot returns the canned snapshot.
func (f *fakeService) Snapshot(context.Context, string) (scenario.Snapshot, error) {
	return f.snapshot, f.err
}

// Subscribe subscribes to the fake bus.
func (f *fakeService) Subscribe(name string) (*events.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.bus.Subscribe(name), nil
}

// fakeWatchStream collects sent events.
type fakeWatchStream struct {
	ctx  context.Context //nolint:containedctx // Mirrors grpc.ServerStream.
	sent chan *structpb.Struct
}

// Send records the event.
func (s *fakeWatchStream) Send(event *structpb.Struct) error {
	s.sent <- event

	return nil
}

// Context returns the stream context.
func (s *fakeWatchStream) Context() context.Context { return s.ctx }

// TestServer_Fire_Validation ensures invalid requests return InvalidArgument errors.
func TestServer_Fire_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService))

	_, err := s.Fire(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Fire(context.Background(), NewFireRequest("", "approve", nil))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Fire(context.Background(), NewFireRequest("geofence", "", nil))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.GetSnapshot(context.Background(), wrapperspb.String(""))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Fire_Roundtrip checks request decoding and reply encoding.
func TestServer_Fire_Roundtrip(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: machine.Result{State: "DangerZone"}}
	s := NewServer(svc)

	actor := &safety.Actor{Hostname: "test-hostname", Username: "test-user"}

	reply, err := s.Fire(context.Background(), NewFireRequest("geofence", "enterDanger", actor))
	require.NoError(t, err)

	require.Equal(t, "geofence", svc.fired.name)
	require.Equal(t, "enterDanger", svc.fired.trigger)
	require.Equal(t, actor, svc.fired.actor)

	decoded := ParseFireReply(reply)
	require.True(t, decoded.Applied)
	require.Equal(t, "Applied(DangerZone)", decoded.String())

	svc.result = machine.Result{State: "DangerZone", Reason: machine.AlreadyInState}

	reply, err = s.Fire(context.Background(), NewFireRequest("geofence", "enterDanger", nil))
	require.NoError(t, err)
	require.Nil(t, svc.fired.actor)
	require.Equal(t, "Ignored(already_in_state)", ParseFireReply(reply).String())
}

// TestServer_ErrorMapping checks session errors become gRPC codes.
func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	svc := &fakeService{err: scenario.ErrUnknownScenario}
	s := NewServer(svc)

	_, err := s.Fire(context.Background(), NewFireRequest("volcano", "erupt", nil))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	svc.err = errTestBroken

	_, err = s.GetSnapshot(context.Background(), wrapperspb.String("geofence"))
	require.Equal(t, codes.Internal, status.Code(err))
}

// TestServer_GetSnapshot checks the snapshot document layout.
func TestServer_GetSnapshot(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.September, 3, 10, 0, 1, 0, time.UTC)
	svc := &fakeService{snapshot: scenario.Snapshot{
		Scenario: "credential",
		State:    "Issued",
		Triggers: []machine.Trigger{"issue", "expire", "reset"},
		Notifications: []safety.Notification{
			{ID: 1, Category: safety.CategoryLedger, Message: "recorded", Timestamp: at},
		},
		Credential: &safety.Credential{
			HolderName: "John Doe",
			ValidFrom:  time.Date(2025, time.September, 3, 0, 0, 0, 0, time.UTC),
			ValidTo:    time.Date(2025, time.September, 7, 0, 0, 0, 0, time.UTC),
			Status:     safety.CredentialActive,
			BlockID:    1249,
		},
	}}

	reply, err := NewServer(svc).GetSnapshot(context.Background(), wrapperspb.String("credential"))
	require.NoError(t, err)

	fields := reply.GetFields()
	require.Equal(t, "Issued", fields["state"].GetStringValue())
	require.Len(t, fields["triggers"].GetListValue().GetValues(), 3)

	entry := fields["notifications"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	require.InDelta(t, 1, entry["id"].GetNumberValue(), 0)
	require.Equal(t, "2025-09-03T10:00:01Z", entry["timestamp"].GetStringValue())

	credential := fields["credential"].GetStructValue().GetFields()
	require.Equal(t, "John Doe", credential["holder"].GetStringValue())
	require.Equal(t, "2025-09-07", credential["valid_to"].GetStringValue())
	require.InDelta(t, 1249, credential["block_id"].GetNumberValue(), 0)

	require.NotContains(t, fields, "position")
}

// TestServer_Watch streams bus events until the bus closes.
func TestServer_Watch(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	s := NewServer(&fakeService{bus: bus})
	stream := &fakeWatchStream{ctx: context.Background(), sent: make(chan *structpb.Struct, 8)}

	done := make(chan error, 1)

	go func() {
		done <- s.Watch(wrapperspb.String("geofence"), stream)
	}()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)

	at := time.Date(2025, time.September, 3, 10, 0, 0, 0, time.UTC)
	bus.Publish(events.StateChanged{
		Scenario: "geofence", From: "Safe", To: "DangerZone", Trigger: "enterDanger",
		Actor: &safety.Actor{Hostname: "desk", Username: "op"}, Timestamp: at,
	})
	bus.Publish(events.PositionChanged{Scenario: "emergency", Timestamp: at})
	bus.Publish(events.NotificationAdded{Scenario: "geofence", Entry: safety.Notification{
		ID: 1, Category: safety.CategoryAuthority, Message: "Alert sent", Timestamp: at.Add(time.Second),
	}})

	first := <-stream.sent
	require.Equal(t, EventStateChanged, first.GetFields()["type"].GetStringValue())
	require.Equal(t, "[10:00:00] geofence   Safe -> DangerZone on enterDanger by op@desk", FormatEvent(first))

	second := <-stream.sent
	require.Equal(t, "[10:00:01] geofence   #1 AUTHORITY: Alert sent", FormatEvent(second))

	bus.Close()
	require.NoError(t, <-done)
	require.Empty(t, stream.sent)
}

// TestServer_WatchStopsOnCancel ends the stream when the client leaves.
func TestServer_WatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	s := NewServer(&fakeService{bus: bus})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Watch(wrapperspb.String(""), &fakeWatchStream{ctx: ctx, sent: make(chan *structpb.Struct, 1)})
	require.NoError(t, err)
	require.Zero(t, bus.Subscribers())
}

// TestServiceDesc checks the hand-declared service description.
func TestServiceDesc(t *testing.T) {
	t.Parallel()

	require.Equal(t, "touristsafety.v1.SimulationService", ServiceDesc.ServiceName)
	require.Len(t, ServiceDesc.Methods, 2)
	require.Len(t, ServiceDesc.Streams, 1)
	require.True(t, ServiceDesc.Streams[0].ServerStreams)

	srv := grpc.NewServer()
	require.NotPanics(t, func() { Register(srv, NewServer(new(fakeService))) })
	require.Contains(t, srv.GetServiceInfo(), ServiceName)
}
