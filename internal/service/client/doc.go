// Package client implements the safety-ctl commands that talk to a running
// safety-server: firing triggers and printing scenario snapshots.
package client
