package safety

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"gridtrader/internal/alert"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuit struct {
	maxFailures int
	failures    int
	open        bool
	openErr     error
}

// Breaker trips on consecutive order placement or cancellation failures.
// Once a circuit opens it stays open for the life of the process; an
// operator restart is the only reset. A nil or disabled Breaker records
// nothing and never trips.
type Breaker struct {
	enabled bool

	mu     sync.Mutex
	place  circuit
	cancel circuit

	alerter alert.Alerter
}

func NewBreaker(enabled bool, maxPlaceFailures, maxCancelFailures int) *Breaker {
	return &Breaker{
		enabled: enabled,
		place:   circuit{maxFailures: maxPlaceFailures},
		cancel:  circuit{maxFailures: maxCancelFailures},
	}
}

func (b *Breaker) SetAlerter(alerter alert.Alerter) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerter = alerter
}

func (b *Breaker) RecordPlace(err error) error {
	if b == nil {
		return nil
	}
	return b.record("place order", &b.place, err)
}

func (b *Breaker) RecordCancel(err error) error {
	if b == nil {
		return nil
	}
	return b.record("cancel order", &b.cancel, err)
}

func (b *Breaker) record(name string, c *circuit, err error) error {
	if !b.enabled {
		return nil
	}

	b.mu.Lock()
	if c.maxFailures < 1 {
		b.mu.Unlock()
		return nil
	}

	if err == nil {
		recovered := !c.open && c.failures > 0
		prev := c.failures
		if !c.open {
			c.failures = 0
		}
		b.mu.Unlock()
		if recovered {
			log.Printf("level=INFO event=circuit_breaker_recovered action=%q previous_consecutive_failures=%d", name, prev)
		}
		return nil
	}

	if c.open {
		openErr := c.openErr
		b.mu.Unlock()
		return openErr
	}

	c.failures++
	failures := c.failures
	limit := c.maxFailures
	alerter := b.alerter
	if failures < limit {
		nearTrip := limit > 1 && failures == limit-1
		b.mu.Unlock()
		if nearTrip {
			log.Printf("level=WARN event=circuit_breaker_near_trip action=%q consecutive_failures=%d threshold=%d last_error=%q",
				name, failures, limit, err.Error())
		}
		return nil
	}

	c.open = true
	c.openErr = fmt.Errorf("%w: %s failed %d consecutive times, last error: %v", ErrCircuitOpen, name, failures, err)
	openErr := c.openErr
	b.mu.Unlock()

	log.Printf("level=ERROR event=circuit_breaker_trip action=%q consecutive_failures=%d threshold=%d last_error=%q",
		name, failures, limit, err.Error())
	if alerter != nil {
		alerter.Important("circuit_breaker_trip", map[string]string{
			"action":               name,
			"consecutive_failures": strconv.Itoa(failures),
			"threshold":            strconv.Itoa(limit),
			"last_error":           err.Error(),
		})
	}
	return openErr
}

// Tripped reports whether any circuit is open.
func (b *Breaker) Tripped() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.place.open || b.cancel.open
}
