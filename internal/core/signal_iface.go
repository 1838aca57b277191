package core

// Frame is one encoded outbound message.
type Frame []byte

// SignalConnection abstracts a participant's outbound transport.
// Owned by the adapter; the adapter must Close() it. TrySend must never block.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
