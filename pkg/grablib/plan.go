package grablib

import "math"

// PlanChunks maps a total size and a concurrency hint to an ordered list of
// disjoint, contiguous chunks whose union covers [0, totalSize-1] exactly.
//
// An unknown size (totalSize <= 0) or a hint of one yields a single chunk
// covering the whole, possibly unbounded, range. Otherwise each of the
// first n-1 chunks spans floor(totalSize/n) bytes and the last chunk
// absorbs the remainder.
func PlanChunks(totalSize int64, n int) []*Chunk {
	if totalSize <= 0 || n <= 1 {
		end := int64(math.MaxInt64)
		if totalSize > 0 {
			end = totalSize - 1
		}
		return []*Chunk{NewChunk(0, end)}
	}
	if int64(n) > totalSize {
		n = int(totalSize)
	}
	base := totalSize / int64(n)
	chunks := make([]*Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * base
		end := start + base - 1
		if i == n-1 {
			end = totalSize - 1
		}
		chunks = append(chunks, NewChunk(start, end))
	}
	return chunks
}

// workerCountFor picks a worker count from the total size. Boundaries are
// strict: exactly 10 MiB selects the 4-worker tier and exactly 100 MiB the
// 8-worker tier.
func workerCountFor(totalSize int64) int {
	switch {
	case totalSize <= 0:
		return 1
	case totalSize < 10*MB:
		return 2
	case totalSize < 100*MB:
		return 4
	default:
		return 8
	}
}
