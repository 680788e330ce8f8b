// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the simulation service with call
// timeouts, detection of the current system actor (hostname/username) sent
// with every trigger, and a process scan that keeps a binary single-instance.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
