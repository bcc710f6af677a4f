// Package state keeps per-user conversation state for Telegram bots.
//
// A Store serializes access per key: Update runs its function while holding
// the key, so a read, a transition and the write-back form one step even
// when several updates touch the same user concurrently. Store values are
// plain structs owned by the caller; the package knows nothing about them
// beyond JSON encoding for the Postgres backend.
package state
