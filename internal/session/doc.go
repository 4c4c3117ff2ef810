// Package session tracks each chat user's multi-turn collection state.
//
// A [Session] records which flow the user is in and the inputs buffered so
// far. The [Store] serialises all mutations for one user so two racing
// events never observe a half-updated session.
package session
