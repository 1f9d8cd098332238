package grablib

import "fmt"

// Chunk is a contiguous byte range of the target resource assigned to one
// worker. Offsets are inclusive on both ends. Invariants:
// Start <= Current <= End+1, and Completed exactly when Current > End.
type Chunk struct {
	// Start is the first byte offset of the chunk.
	Start int64 `json:"start"`
	// End is the last byte offset of the chunk.
	End int64 `json:"end"`
	// Current is the next byte offset to fetch.
	Current int64 `json:"current"`
	// Completed is set once Current has advanced past End.
	Completed bool `json:"completed"`
}

// NewChunk creates a chunk covering [start, end] with no progress.
func NewChunk(start, end int64) *Chunk {
	return &Chunk{Start: start, End: end, Current: start}
}

// Size returns the total number of bytes the chunk covers.
func (c *Chunk) Size() int64 { return c.End - c.Start + 1 }

// Remaining returns the number of bytes not yet fetched.
func (c *Chunk) Remaining() int64 {
	if c.Current > c.End {
		return 0
	}
	return c.End - c.Current + 1
}

func (c *Chunk) clone() *Chunk {
	cc := *c
	return &cc
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk[%d-%d] current=%d completed=%v", c.Start, c.End, c.Current, c.Completed)
}

func cloneChunks(chunks []*Chunk) []*Chunk {
	out := make([]*Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.clone()
	}
	return out
}
