package state

// DefaultDebounceSamples is the number of consecutive agreeing samples needed
// before an input level change is accepted.
const DefaultDebounceSamples = 2

// DigitalReader reads the current physical level of one digital input.
// High is true.
type DigitalReader interface {
	Level() bool
}

// DigitalReaderFunc adapts a plain function to DigitalReader.
type DigitalReaderFunc func() bool

// Level calls f.
func (f DigitalReaderFunc) Level() bool {
	return f()
}

// InputMonitor turns the raw level of a DigitalReader into debounced
// Press/Release events.
type InputMonitor struct {
	reader    DigitalReader
	index     int
	lowActive bool
	samples   int

	debounced bool
	raw       bool
	stable    int
}

// NewInputMonitor seeds the debounced level from one read of reader, so an
// input that is already active when monitoring starts produces no event.
func NewInputMonitor(reader DigitalReader, index int, lowActive bool, samples int) (*InputMonitor, error) {
	if reader == nil {
		return nil, ErrNilReader
	}
	if samples < 1 {
		return nil, ErrInvalidDebounce
	}

	level := reader.Level()

	return &InputMonitor{
		reader:    reader,
		index:     index,
		lowActive: lowActive,
		samples:   samples,
		debounced: level,
		raw:       level,
	}, nil
}

// Sample reads the input once. It returns an edge event when the raw level
// has disagreed with the debounced level for the configured number of
// consecutive samples.
func (m *InputMonitor) Sample() (Event, bool) {
	m.raw = m.reader.Level()

	if m.raw == m.debounced {
		m.stable = 0
		return NoEvent, false
	}

	m.stable++
	if m.stable < m.samples {
		return NoEvent, false
	}

	m.debounced = m.raw
	m.stable = 0

	if m.isActive(m.debounced) {
		return Press(m.index), true
	}
	return Release(m.index), true
}

// deferEdge undoes the edge emitted by the last Sample. The next Sample
// emits it again if the raw level still holds.
func (m *InputMonitor) deferEdge() {
	m.debounced = !m.debounced
	m.stable = m.samples - 1
}

// Index is the input index used in emitted events.
func (m *InputMonitor) Index() int {
	return m.index
}

// LowActive reports whether a low level means pressed.
func (m *InputMonitor) LowActive() bool {
	return m.lowActive
}

// Active reports the debounced logical state of the input.
func (m *InputMonitor) Active() bool {
	return m.isActive(m.debounced)
}

// Raw reports the last sampled physical level.
func (m *InputMonitor) Raw() bool {
	return m.raw
}

func (m *InputMonitor) isActive(level bool) bool {
	return level != m.lowActive
}
