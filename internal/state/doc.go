// Package state holds the in-memory connection table of the session hub:
// per-connection records, the presence directory derived from them and the
// implicit room membership.
//
// A Store is not safe for concurrent use. It is owned by a single session hub
// and only touched from that hub's event loop.
package state
