package commitlog

// payload.go implements the move-only handle for commit-log bytes.

// Payload is an owned commit-log buffer on its way into a Registry.
//
// A Payload is produced once per committed transaction and consumed once by
// Registry.AddCommit. Its bytes are not reachable through the Payload API;
// after the hand-off they are visible only as read-only views returned by
// range fetches.
type Payload struct {
	data []byte
}

// NewPayload wraps b as a Payload, taking ownership of it.
// The caller must not read or write b afterwards.
func NewPayload(b []byte) Payload {
	return Payload{data: b}
}

// Len returns the payload size in bytes.
func (p Payload) Len() int {
	return len(p.data)
}

// IsZero reports whether p holds no buffer.
func (p Payload) IsZero() bool {
	return p.data == nil
}
