// Package adapter implements the connection lifecycle and status
// reconciliation engine for a single gateway.
//
// The engine keeps the adapter's externally visible health consistent
// with an unreliable device (slow boot, rejected auth, dropped event
// stream, transient network errors) while guaranteeing no duplicate
// in-flight work: one refresh job, one pending retry timer, one
// reconnect attempt at a time.
//
// # Components
//
//   - StatusController: owns the published status and its scheduling
//     side effects.
//   - Scheduler: at most one recurring refresh job, idempotent
//     start/stop.
//   - Throttle: bounds expensive model refreshes to once per interval.
//   - AuthFlow: acquires the gateway access key via request/poll.
//   - FullStateFetcher: one-shot self-description fetch that
//     parameterises the event session and hands off to discovery.
//   - Session: the reconnecting persistent event connection.
//   - Adapter: composes the above into bring-up, periodic refresh,
//     command handling, and teardown.
//
// Collaborators (REST transport, event transport, status sink,
// configuration store, discovery, device operations) are consumed as
// narrow interfaces so concrete gateway and platform bindings stay
// outside this package.
//
// # Concurrency
//
// Timer callbacks, transport callbacks, and direct command calls run
// concurrently; there is no single-threaded guarantee. Single-slot
// invariants are enforced with per-concern mutexes, and status
// publication is a pure value comparison, so racing equal writes
// produce one observable update.
package adapter
