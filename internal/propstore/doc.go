// Package propstore persists adapter properties (the gateway access
// key and gateway-reported identity fields) in SQLite.
//
// The store separates user-driven writes (Set, SetCredential), which
// notify registered listeners, from gateway-reported property merges
// (SetProperties), which never do. The lifecycle engine relies on
// that distinction: merging versions and identifiers during bring-up
// must not look like a configuration change.
package propstore
