// Package sensor samples the node's physical channels into a shared State.
package sensor

import "sync"

// Reading is the current value of every sampled channel.
type Reading struct {
	Temperature float32
	Humidity    float32
	Percentage  int32
}

// State holds the latest sampled values. Samplers write it, the delta
// evaluator reads it.
type State struct {
	mu         sync.Mutex
	cur        Reading
	hasClimate bool
	hasPercent bool
}

func NewState() *State {
	return &State{}
}

// SetClimate stores a temperature/humidity pair. NaN marks a failed read and
// is stored as is.
func (s *State) SetClimate(temperature, humidity float32) {
	s.mu.Lock()
	s.cur.Temperature = temperature
	s.cur.Humidity = humidity
	s.hasClimate = true
	s.mu.Unlock()
}

func (s *State) SetPercentage(p int32) {
	s.mu.Lock()
	s.cur.Percentage = p
	s.hasPercent = true
	s.mu.Unlock()
}

// Current returns the latest values and whether every channel has been
// sampled at least once.
func (s *State) Current() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, s.hasClimate && s.hasPercent
}
