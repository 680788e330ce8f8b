// Package demo implements safety-ctl demo: it runs a private session in
// process, fires a scripted trigger sequence against one scenario and prints
// the events as they happen, followed by the final snapshot.
package demo
