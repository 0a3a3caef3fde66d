package core

// Frame is a raw binary payload, already encoded for the wire.
type Frame []byte

// ConnID identifies one transport connection for its whole lifetime.
// IDs are never reused within a process.
type ConnID uint64

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
