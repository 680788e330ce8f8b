// Package config defines the simulator settings and the static per-scenario
// configuration: zone constants, tourist identity, motion parameters,
// credential fields and every notification cascade.
//
// Settings are YAML. Default returns the embedded demo configuration and Load
// overlays a file on top of it, so partial files only need the keys they change.
package config
