package statement

import (
	"sort"
	"sync"
)

// Builder collects items from concurrently processed pages. Items are only
// appended; Build restores page order.
type Builder struct {
	mu    sync.Mutex
	pages map[int][]Item
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{pages: make(map[int][]Item)}
}

// Add appends one item to its page.
func (b *Builder) Add(item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[item.PageID] = append(b.pages[item.PageID], item)
}

// AddPage appends a page's items in extraction order.
func (b *Builder) AddPage(pageID int, items []Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[pageID] = append(b.pages[pageID], items...)
}

// Len reports the number of items collected so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, items := range b.pages {
		n += len(items)
	}
	return n
}

// Build returns a copy of the items ordered by page id, then by the order
// they were added.
func (b *Builder) Build() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int, 0, len(b.pages))
	for id := range b.pages {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []Item
	for _, id := range ids {
		for _, it := range b.pages[id] {
			it.Values = append([]Value(nil), it.Values...)
			out = append(out, it)
		}
	}
	return out
}
