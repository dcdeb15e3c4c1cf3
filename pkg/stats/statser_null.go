package stats

// NullStatser is a null implementation of Statser, intended primarily
// for test purposes
type NullStatser struct{}

// NewNullStatser creates a new NullStatser
func NewNullStatser() Statser {
	return &NullStatser{}
}

// Gauge does nothing
func (ns *NullStatser) Gauge(name string, value float64) {}

// Count does nothing
func (ns *NullStatser) Count(name string, amount float64) {}

// Increment does nothing
func (ns *NullStatser) Increment(name string) {}
