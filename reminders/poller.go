package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultPollInterval = time.Minute

// Poller drives the due-reminder banner: it polls the due feed on a fixed
// interval and hands the visible set to a handler whenever it changes.
//
// The feed is display-only, so poll failures are logged and skipped, a
// snooze suppresses the feed locally without contacting the server, and an
// acknowledgement removes the reminder from the visible set immediately
// whether or not the server accepted it. There is no rollback; an
// acknowledgement the server missed resurfaces whenever it is due next.
type Poller struct {
	client   *Client
	handler  func([]Reminder)
	interval time.Duration
	logger   zerolog.Logger
	nowTime  func() time.Time

	lock        sync.Mutex
	visible     map[int64]Reminder
	dismissed   map[int64]struct{}
	snoozeUntil time.Time
}

// PollerOption defines a function type to modify the Poller instance.
type PollerOption func(*Poller)

// WithInterval sets the polling interval.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = interval
	}
}

// WithPollerLogger attaches a logger. The default discards everything.
func WithPollerLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) PollerOption {
	return func(p *Poller) {
		p.nowTime = nowFunc
	}
}

// NewPoller creates a poller that delivers the visible reminder set to
// handler.
func NewPoller(client *Client, handler func([]Reminder), options ...PollerOption) (*Poller, error) {
	if client == nil {
		return nil, fmt.Errorf("[reminders.NewPoller] client is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("[reminders.NewPoller] handler is required")
	}

	p := &Poller{
		client:    client,
		handler:   handler,
		interval:  defaultPollInterval,
		logger:    zerolog.Nop(),
		nowTime:   time.Now,
		visible:   make(map[int64]Reminder),
		dismissed: make(map[int64]struct{}),
	}

	for _, opt := range options {
		opt(p)
	}

	return p, nil
}

// Start polls until the context is cancelled. The first poll runs
// immediately. Ticks are not cancelled when a poll runs long; a slow response
// may overlap the next tick, which is acceptable for a display-only feed.
func (p *Poller) Start(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.poll(ctx)
		}
	}
}

// Snooze suppresses the feed until the window elapses, without contacting
// the server. The banner empties immediately.
func (p *Poller) Snooze(window time.Duration) {
	p.lock.Lock()
	p.snoozeUntil = p.nowTime().Add(window)
	p.lock.Unlock()

	p.handler(nil)
}

// Acknowledge removes the reminder from the visible set immediately and
// notifies the server once. A failed POST is absorbed: the local removal
// stands either way.
func (p *Poller) Acknowledge(ctx context.Context, id int64) {
	p.lock.Lock()
	delete(p.visible, id)
	p.dismissed[id] = struct{}{}
	p.lock.Unlock()

	p.emit()

	if err := p.client.Acknowledge(ctx, id); err != nil {
		p.logger.Warn().Err(err).Int64("reminder_id", id).Msg("acknowledge failed, keeping local removal")
	}
}

// Visible returns the reminders currently on display, ordered by id.
func (p *Poller) Visible() []Reminder {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.visibleLocked()
}

func (p *Poller) poll(ctx context.Context) {
	p.lock.Lock()
	snoozed := p.nowTime().Before(p.snoozeUntil)
	p.lock.Unlock()
	if snoozed {
		return
	}

	due, err := p.client.Due(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("due-reminder poll failed")
		return
	}

	p.lock.Lock()
	p.visible = make(map[int64]Reminder, len(due))
	inFeed := make(map[int64]struct{}, len(due))
	for _, r := range due {
		inFeed[r.ID] = struct{}{}
		if _, gone := p.dismissed[r.ID]; gone {
			continue
		}
		p.visible[r.ID] = r
	}
	// A dismissal only has to outlast the server still listing the reminder
	// as due. Once the feed drops the id, forget it, so the reminder
	// resurfaces the next time it comes due.
	for id := range p.dismissed {
		if _, ok := inFeed[id]; !ok {
			delete(p.dismissed, id)
		}
	}
	p.lock.Unlock()

	p.emit()
}

func (p *Poller) emit() {
	p.lock.Lock()
	visible := p.visibleLocked()
	snoozed := p.nowTime().Before(p.snoozeUntil)
	p.lock.Unlock()

	if snoozed {
		return
	}
	p.handler(visible)
}

func (p *Poller) visibleLocked() []Reminder {
	out := make([]Reminder, 0, len(p.visible))
	for _, r := range p.visible {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
