package session

import "time"

type metric string

const (
	metricMeter    metric = "meter"
	metricDuration metric = "duration"
	metricVolume   metric = "volume"
)

type poller struct {
	ticker Ticker
	done   chan struct{}
}

// startPollerLocked makes a new poller the only one for m, stopping the one it
// replaces. On every tick read runs outside the session lock; the update it
// returns is applied only if this poller is still current. s.mu must be held.
func (s *Session) startPollerLocked(m metric, interval time.Duration, read func() func(*State)) {
	s.stopPollerLocked(m)

	p := &poller{ticker: s.clock.NewTicker(interval), done: make(chan struct{})}
	s.pollers[m] = p
	s.log.Debug("Poller started", "metric", m, "interval", interval)

	go func() {
		for {
			select {
			case <-p.done:
				return
			case <-p.ticker.C():
			}

			update := read()
			if update == nil {
				continue
			}

			s.mu.Lock()
			if s.pollers[m] != p {
				s.mu.Unlock()
				return
			}
			update(&s.state)
			s.unlockAndPublish()
		}
	}()
}

// stopPollerLocked releases the poller for m. Stopping the meter poller
// resets the displayed level. s.mu must be held.
func (s *Session) stopPollerLocked(m metric) {
	p, ok := s.pollers[m]
	if !ok {
		return
	}
	delete(s.pollers, m)
	p.ticker.Stop()
	close(p.done)
	if m == metricMeter {
		s.state.MeterLevel = meterReset
	}
	s.log.Debug("Poller stopped", "metric", m)
}

func (s *Session) stopTrackersLocked() {
	s.stopPollerLocked(metricDuration)
	s.stopPollerLocked(metricVolume)
}

// ActivePollers reports which metrics currently have a poller
func (s *Session) ActivePollers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, m := range []metric{metricMeter, metricDuration, metricVolume} {
		if _, ok := s.pollers[m]; ok {
			names = append(names, string(m))
		}
	}
	return names
}
