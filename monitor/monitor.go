// Package monitor polls a light/proximity sensor on a fixed cadence and hands
// every result to a display collaborator as an Update value.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mklimuk/proxals"
	"github.com/mklimuk/proxals/tmd2771"
)

const DefaultInterval = 900 * time.Millisecond

const StatusRunning = "Running"

// Update is what the display collaborator receives for every poll.
// Reading is nil when Err is set.
type Update struct {
	At      time.Time
	Reading *tmd2771.Reading
	Status  string
	Err     error
}

type Poller struct {
	sensor      tmd2771.Sensor
	clock       clock.Clock
	interval    time.Duration
	stopOnFault bool
}

type Option func(*Poller)

func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		p.interval = interval
	}
}

// StopOnFault makes Run return after delivering the first failed update.
func StopOnFault() Option {
	return func(p *Poller) {
		p.stopOnFault = true
	}
}

func New(sensor tmd2771.Sensor, opts ...Option) *Poller {
	p := &Poller{
		sensor:   sensor,
		clock:    clock.New(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then on every tick until ctx is done. Each result
// is sent on updates; Run blocks while the receiver is busy.
func (p *Poller) Run(ctx context.Context, updates chan<- Update) error {
	if p.interval <= 0 {
		return fmt.Errorf("invalid polling interval: %s", p.interval)
	}
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	for {
		u := p.poll(ctx)
		select {
		case updates <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
		if u.Err != nil && p.stopOnFault {
			return u.Err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Poller) poll(ctx context.Context) Update {
	r, err := p.sensor.Poll(ctx)
	now := p.clock.Now()
	if err != nil {
		slog.Debug("poll failed", "error", err)
		return Update{At: now, Status: PollFailureStatus(err), Err: err}
	}
	return Update{At: now, Reading: &r, Status: StatusRunning}
}

func PollFailureStatus(err error) string {
	return "Failed to read from Proximity and Light Sensor: " + err.Error()
}

// StartupStatus renders acquisition and initialization failures for the
// display collaborator.
func StartupStatus(err error, addr uint16, controller string) string {
	switch {
	case errors.Is(err, proxals.ErrNoControllerFound):
		return "No I2C controllers were found on the system"
	case errors.Is(err, proxals.ErrAddressInUse):
		return fmt.Sprintf("Slave address %#x on I2C Controller %s is currently in use by another application. "+
			"Please ensure that no other applications are using I2C.", addr, controller)
	default:
		return "Failed to communicate with device: " + err.Error()
	}
}
