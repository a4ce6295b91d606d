package board

import "errors"

var (
	// ErrNotFound means the referenced deal does not exist in the store.
	ErrNotFound = errors.New("deal not found")
	// ErrStaleIndex means the caller's (stage, index) view no longer matches
	// the store. The caller should refresh its board and retry or abandon.
	ErrStaleIndex = errors.New("stale source index")
	// ErrInvalidRange means the destination index is out of bounds.
	ErrInvalidRange = errors.New("destination index out of range")
)
