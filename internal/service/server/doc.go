// Package server runs the safety-server process: one simulation session
// exposed over gRPC, with Prometheus metrics on a side HTTP endpoint.
package server
