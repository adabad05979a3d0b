package job

import "sync"

// Parts collects downloaded pieces by index as they complete in any order
// and tracks the gap-free prefix that is safe to assemble early.
type Parts struct {
	mu         sync.Mutex
	data       [][]byte
	filled     []bool
	done       int
	contiguous int
}

func NewParts(n int) *Parts {
	return &Parts{
		data:   make([][]byte, n),
		filled: make([]bool, n),
	}
}

func (p *Parts) Len() int {
	return len(p.data)
}

// Set stores piece i. Out-of-range indexes are ignored.
func (p *Parts) Set(i int, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.data) {
		return
	}
	if !p.filled[i] {
		p.filled[i] = true
		p.done++
	}
	p.data[i] = b
	for p.contiguous < len(p.data) && p.filled[p.contiguous] {
		p.contiguous++
	}
}

// ContiguousCount is the number of pieces 0..k-1 that are all present.
func (p *Parts) ContiguousCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contiguous
}

func (p *Parts) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Prefix returns the pieces of the contiguous prefix.
func (p *Parts) Prefix() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, p.contiguous)
	copy(out, p.data[:p.contiguous])
	return out
}

// All returns every piece and whether all of them are present.
func (p *Parts) All() ([][]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.data))
	copy(out, p.data)
	return out, p.contiguous == len(p.data)
}
