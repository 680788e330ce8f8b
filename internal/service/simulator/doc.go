// Package simulator runs one simulation session: a single timeline made of a
// scheduler queue, its clock and the three scenarios. Every trigger and every
// timer firing is serialized by the session lock, so scenario state is never
// mutated concurrently.
package simulator
