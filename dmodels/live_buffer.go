package dmodels

const DefaultLiveBufferCapacity = 100

// LiveBuffer is a fixed-size ring of samples. When full, a push evicts the
// oldest sample. Not safe for concurrent use; the owner serializes access.
type LiveBuffer struct {
	buf  []Sample
	head int // next write position
	size int
}

// NewLiveBuffer creates a buffer holding at most capacity samples.
// If capacity <= 0, DefaultLiveBufferCapacity is used.
func NewLiveBuffer(capacity int) *LiveBuffer {
	if capacity <= 0 {
		capacity = DefaultLiveBufferCapacity
	}
	return &LiveBuffer{buf: make([]Sample, capacity)}
}

func (b *LiveBuffer) Push(s Sample) {
	b.buf[b.head] = s
	b.head = (b.head + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
}

func (b *LiveBuffer) Len() int {
	return b.size
}

func (b *LiveBuffer) Cap() int {
	return len(b.buf)
}

func (b *LiveBuffer) Reset() {
	b.head = 0
	b.size = 0
}

// Samples returns the retained samples oldest first.
func (b *LiveBuffer) Samples() Series {
	out := make(Series, b.size)
	// oldest entry sits at (head - size + cap) % cap
	start := (b.head - b.size + len(b.buf)) % len(b.buf)
	for i := 0; i < b.size; i++ {
		out[i] = b.buf[(start+i)%len(b.buf)]
	}
	return out
}

func (b *LiveBuffer) Last() (Sample, bool) {
	if b.size == 0 {
		return Sample{}, false
	}
	return b.buf[(b.head-1+len(b.buf))%len(b.buf)], true
}
