// Package simulation implements the gRPC transport of the simulator.
//
// The service is declared by hand on well-known protobuf types: requests and
// replies are structpb.Struct documents and scenario names travel as
// wrapperspb.StringValue. It adapts those messages to the session and streams
// scenario events to watchers.
package simulation
