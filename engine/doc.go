// Package engine implements the per-session orchestration loop: it assembles
// a bounded decision context, asks the oracle for the next action, routes
// proposed tool calls through the confirmation gate and the registry, folds
// results and errors back into the context, and terminates the turn with a
// reply or a pending confirmation.
//
// Turns for the same session are serialized in submission order through the
// session store; turns for different sessions run concurrently up to a
// configurable limit.
package engine
