package logcollection

import "sync"

// DefaultBufferLines is how many captured lines a tunnel keeps in memory
const DefaultBufferLines = 1000

// LogBuffer is a bounded, ordered buffer of formatted log lines.
// Once full, every append evicts the oldest entry.
type LogBuffer struct {
	mu      sync.Mutex
	entries []string
	start   int
	count   int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferLines
	}
	return &LogBuffer{entries: make([]string, capacity)}
}

func (b *LogBuffer) Append(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.entries)
	if b.count < capacity {
		b.entries[(b.start+b.count)%capacity] = entry
		b.count++
		return
	}
	b.entries[b.start] = entry
	b.start = (b.start + 1) % capacity
}

// Lines returns the last limit entries oldest first; limit <= 0 means all
func (b *LogBuffer) Lines(limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	capacity := len(b.entries)
	first := b.start + b.count - n
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = b.entries[(first+i)%capacity]
	}
	return result
}

func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *LogBuffer) Capacity() int {
	return len(b.entries)
}
