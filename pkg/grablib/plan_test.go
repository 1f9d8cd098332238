package grablib

import (
	"math"
	"testing"
)

func TestPlanChunksCoverage(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		n     int
	}{
		{"even split", 1000, 4},
		{"with remainder", 1003, 4},
		{"two workers", 5 * MB, 2},
		{"eight workers", 500 * MB, 8},
		{"more workers than bytes", 5, 8},
		{"single byte", 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := PlanChunks(tt.total, tt.n)
			if len(chunks) == 0 {
				t.Fatal("no chunks planned")
			}
			if chunks[0].Start != 0 {
				t.Errorf("first chunk starts at %d, want 0", chunks[0].Start)
			}
			var sum int64
			for i, c := range chunks {
				if c.Start > c.End {
					t.Errorf("chunk %d is empty: %s", i, c)
				}
				if i > 0 && c.Start != chunks[i-1].End+1 {
					t.Errorf("gap between chunk %d and %d: %d != %d+1", i-1, i, c.Start, chunks[i-1].End)
				}
				if c.Current != c.Start {
					t.Errorf("chunk %d current = %d, want %d", i, c.Current, c.Start)
				}
				sum += c.Size()
			}
			last := chunks[len(chunks)-1]
			if last.End != tt.total-1 {
				t.Errorf("last chunk ends at %d, want %d", last.End, tt.total-1)
			}
			if sum != tt.total {
				t.Errorf("chunk sizes sum to %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestPlanChunksSingle(t *testing.T) {
	chunks := PlanChunks(1000, 1)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != 999 {
		t.Errorf("got %s, want [0-999]", chunks[0])
	}

	chunks = PlanChunks(-1, 4)
	if len(chunks) != 1 {
		t.Fatalf("unknown size: got %d chunks, want 1", len(chunks))
	}
	if chunks[0].End != math.MaxInt64 {
		t.Errorf("unknown size chunk ends at %d, want open-ended", chunks[0].End)
	}
}

func TestWorkerCountFor(t *testing.T) {
	tests := []struct {
		total int64
		want  int
	}{
		{-1, 1},
		{0, 1},
		{1, 2},
		{10*MB - 1, 2},
		{10 * MB, 4},
		{100*MB - 1, 4},
		{100 * MB, 8},
		{5 * GB, 8},
	}
	for _, tt := range tests {
		if got := workerCountFor(tt.total); got != tt.want {
			t.Errorf("workerCountFor(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}
