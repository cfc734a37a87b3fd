package distribution

import "time"

type timerFactory func(time.Duration) <-chan time.Time

// controlTimer signals tickCh every time the timer returned by timerFactory
// fires, and then re-arms it with the same period.
type controlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{} //sends a signal to the distribution loop
	shutdownCh   chan struct{} //receives instruction to exit run loop
}

func newControlTimer(timerFactory timerFactory) *controlTimer {
	return &controlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (c *controlTimer) run(period time.Duration) {
	timer := c.timerFactory(period)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
			timer = c.timerFactory(period)
		case <-c.shutdownCh:
			return
		}
	}
}

func (c *controlTimer) shutdown() {
	close(c.shutdownCh)
}
