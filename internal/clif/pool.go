package clif

// pageSize bounds the backing array size of a single Pool page, following the same
// paged-arena shape wazevo's wazevoapi.Pool uses for Instruction/BasicBlock allocation.
const pageSize = 128

// Pool is a paged arena for T, allocated once per compiled function and reset between
// functions rather than freed, so that compiling many functions does not repeatedly
// round-trip through the Go allocator.
type Pool[T any] struct {
	pages            []*[pageSize]T
	allocated, index int
}

// NewPool returns a ready-to-use Pool.
func NewPool[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocated returns the number of items allocated since the last Reset.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Allocate returns a pointer to a fresh, zero-valued T.
func (p *Pool[T]) Allocate() *T {
	if p.index == pageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([pageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([pageSize]T)
			}
		}
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

// View returns a pointer to the i-th item ever allocated from this pool.
func (p *Pool[T]) View(i int) *T {
	page, index := i/pageSize, i%pageSize
	return &p.pages[page][index]
}

// Reset clears the pool for reuse by the next function, zeroing every slot it handed out.
func (p *Pool[T]) Reset() {
	for _, page := range p.pages {
		for i := range page {
			var zero T
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = pageSize
	p.allocated = 0
}
