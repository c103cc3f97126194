package searchindex

import "sync/atomic"

// WriteGate reports whether the engine currently accepts writes.
// A closed gate makes every bulk write fail instead of being dropped.
type WriteGate interface {
	WritesEnabled() bool
}

// WriteSwitch is a WriteGate that can be locked and unlocked at runtime.
// The zero value accepts writes.
type WriteSwitch struct {
	locked atomic.Bool
}

// NewWriteSwitch returns a switch, initially locked when readOnly is true.
func NewWriteSwitch(readOnly bool) *WriteSwitch {
	s := &WriteSwitch{}
	s.locked.Store(readOnly)
	return s
}

// Lock rejects subsequent writes.
func (s *WriteSwitch) Lock() { s.locked.Store(true) }

// Unlock accepts writes again.
func (s *WriteSwitch) Unlock() { s.locked.Store(false) }

func (s *WriteSwitch) WritesEnabled() bool { return !s.locked.Load() }

type alwaysOpen struct{}

func (alwaysOpen) WritesEnabled() bool { return true }
