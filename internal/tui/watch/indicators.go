package watch

import (
	"strings"
	"time"
)

const (
	pulseWidth = 5
	pulseFade  = 2 * time.Second
)

// Ticker advances on every successful poll. A frozen ticker means the
// dashboard has lost the service.
type Ticker struct {
	frames   []string
	index    int
	lastTick time.Time
}

func NewTicker() Ticker {
	return Ticker{
		frames:   []string{"⟲", "⟳"},
		lastTick: time.Now(),
	}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
	t.lastTick = time.Now()
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Spinner is an arrival pulse. Larger bursts light more dots, and one dot
// goes dark every pulseFade.
type Spinner struct {
	peak        int
	dots        int
	lastArrival time.Time
}

func NewSpinner() Spinner {
	return Spinner{}
}

// OnMessages records a burst of n newly stored messages.
func (s *Spinner) OnMessages(n int) {
	if n <= 0 {
		return
	}
	s.peak = min(pulseWidth, 2+n)
	s.dots = s.peak
	s.lastArrival = time.Now()
}

func (s *Spinner) Decay() {
	if s.dots == 0 {
		return
	}
	faded := int(time.Since(s.lastArrival) / pulseFade)
	s.dots = max(0, s.peak-faded)
}

func (s Spinner) Render(theme Theme) string {
	lit := theme.TickerActive.Render("●")
	unlit := theme.TickerInactive.Render("○")
	return strings.Repeat(lit, s.dots) + strings.Repeat(unlit, pulseWidth-s.dots)
}

func (s Spinner) LastArrival() time.Time {
	return s.lastArrival
}
