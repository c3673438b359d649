// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/sessionlog/internal/types"

// Compile-time interface compliance checks.
var _ types.RecordStore = (*RecordStore)(nil)
var _ types.Ledger = (*Ledger)(nil)
