package daf

// DelayLine is a fixed-capacity circular byte buffer. Every byte passed
// through Process comes out again exactly Capacity bytes later.
//
// A DelayLine is owned by a single worker goroutine and is not safe for
// concurrent use.
type DelayLine struct {
	storage    []byte
	writeIndex int
}

// NewDelayLine allocates a delay line of capacityBytes. Zero capacity gives
// a passthrough line.
func NewDelayLine(capacityBytes int) *DelayLine {
	return &DelayLine{storage: make([]byte, max(capacityBytes, 0))}
}

// Process swaps each byte of frame with the byte stored capacity positions
// earlier. It works in place and does not allocate.
func (d *DelayLine) Process(frame []byte) {
	capacity := len(d.storage)
	if capacity == 0 {
		return
	}

	idx := d.writeIndex
	for i := range frame {
		frame[i], d.storage[idx] = d.storage[idx], frame[i]
		idx++
		if idx == capacity {
			idx = 0
		}
	}
	d.writeIndex = idx
}

// Capacity returns the delay in bytes
func (d *DelayLine) Capacity() int {
	return len(d.storage)
}
