package connector

import "sync/atomic"

// ListenerID identifies one subscription. Ids come from a Sequence and are
// never reused within it.
type ListenerID uint64

// Sequence hands out listener ids.
type Sequence interface {
	Next() ListenerID
}

type counter struct {
	n atomic.Uint64
}

func (c *counter) Next() ListenerID {
	return ListenerID(c.n.Add(1) - 1)
}

var globalSequence = &counter{}

// GlobalSequence returns the process-wide sequence shared by every
// connector that does not supply its own.
func GlobalSequence() Sequence {
	return globalSequence
}

// NewSequence returns an independent sequence starting at zero.
func NewSequence() Sequence {
	return &counter{}
}
