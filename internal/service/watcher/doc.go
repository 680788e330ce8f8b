// Package watcher implements safety-ctl watch: it follows the event stream of
// a running safety-server and prints one line per event, reconnecting when
// the server goes away.
package watcher
