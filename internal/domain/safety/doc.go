// Package safety contains the domain values exchanged between the incident
// engine and its collaborators: notification entries, actor positions,
// tourist credentials and the operator who pressed a button.
//
// Reference types come with Clone helpers so that snapshots handed to
// renderers never alias engine-owned state.
package safety
