// Package pool selects upstream credentials for incoming requests: a
// uniform random draw over the eligible set, with a short grace window
// keeping a just-selected credential out of the next draw.
//
// Selection is advisory, not exclusive. Two concurrent requests can
// draw the same credential in the window between the eligibility read
// and the grace write; the upstream tolerates concurrent use, so the
// pool trades strictness for a lock-free hot path.
package pool
