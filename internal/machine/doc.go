// Package machine implements the scenario state machine: a finite-state
// machine declared as a static transition table whose applied transitions
// start notification cascades on a shared scheduler queue.
//
// Three rules make the machine safe to drive from buttons:
//
//   - a trigger without an edge from the current state is ignored and changes nothing;
//   - while a cascade started by an earlier transition still has pending steps,
//     every trigger except Reset is ignored with AlreadyInState;
//   - Reset is defined from every state, cancels everything the instance has
//     scheduled, empties the log and returns to the initial state.
//
// A Machine is not safe for concurrent use. All calls, including the
// scheduled actions it creates, must run on one timeline.
package machine
