// Package domain models the game session aggregate and its participants.
//
// A session is a shared-character deduction game: every participant steers
// the same board token, roles and resolution order stay hidden, and each
// round moves through planning, submission, resolution, and deduction.
//
// The package holds pure types and constructors. All mutation of a live
// session happens through the engine package, which owns the only lock.
// Constructors follow the service convention of injected clocks and id
// generators so tests stay deterministic.
package domain
