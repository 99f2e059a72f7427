package scheduler

import (
	"context"
	"time"

	"schoolbell/internal/audio"
	"schoolbell/internal/eventbus"
	logx "schoolbell/pkg/logx"
)

// PollInterval is how often the loop looks at the clock.
const PollInterval = time.Second

// Clock returns the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls the poll loop.
type Config struct {
	Entries []Entry
	// Location converts the wall clock before matching. Nil means time.Local.
	Location *time.Location
	// Device is passed to every playback.
	Device string
	// PlaybackTimeout bounds one playback. Zero disables.
	PlaybackTimeout time.Duration
	// Heartbeat is called after every tick (e.g. systemd watchdog).
	Heartbeat func()
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithSleeper(fn Sleeper) Option { return func(s *Service) { s.seq.Sleep = fn } }

// Service is the poll loop. It owns the ledger and the sequencer.
type Service struct {
	cfg   Config
	log   logx.Logger
	loc   *time.Location
	clock Clock

	ledger *Ledger
	seq    *Sequencer

	// lastDate is the date of the previous tick; a change triggers pruning.
	lastDate string
}

func New(cfg Config, player audio.Player, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	ledger := NewLedger()
	s := &Service{
		cfg:    cfg,
		log:    log,
		loc:    loc,
		clock:  systemClock{},
		ledger: ledger,
		seq: &Sequencer{
			Player:  player,
			Device:  cfg.Device,
			Timeout: cfg.PlaybackTimeout,
			Sleep:   SleepContext,
			Ledger:  ledger,
			Log:     log,
			Bus:     bus,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Entries() []Entry { return s.cfg.Entries }

func (s *Service) Location() *time.Location { return s.loc }

// Ledger exposes the dedup ledger for diagnostics and tests.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Now returns the current time in the scheduler's location.
func (s *Service) Now() time.Time { return s.clock.Now().In(s.loc) }

// Run ticks once per PollInterval until ctx is done. A tick that spends
// time playing delays the next one; the ticker then fires immediately.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(PollInterval)
	defer t.Stop()

	s.log.Debug("poll loop started", logx.Int("entries", len(s.cfg.Entries)), logx.String("tz", s.loc.String()))
	for {
		s.RunTick(ctx, NewTick(s.Now()))
		if s.cfg.Heartbeat != nil {
			s.cfg.Heartbeat()
		}
		select {
		case <-ctx.Done():
			s.log.Debug("poll loop stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunTick evaluates every entry once, in declared order, and plays the due
// ones sequentially. It returns the outcomes of the entries that fired.
func (s *Service) RunTick(ctx context.Context, tick Tick) []Outcome {
	if tick.Date != s.lastDate {
		if s.lastDate != "" {
			if n := s.ledger.Prune(tick.Date); n > 0 {
				s.log.Debug("pruned fired keys from previous days", logx.Int("removed", n), logx.String("date", tick.Date))
			}
		}
		s.lastDate = tick.Date
	}

	var fired []Outcome
	for _, e := range s.cfg.Entries {
		if ctx.Err() != nil {
			break
		}
		if !DayAllowed(e, tick) || !ShouldTrigger(e, tick) {
			continue
		}
		key := KeyFor(e, tick)
		if s.ledger.Has(key) {
			continue
		}
		fired = append(fired, s.seq.Play(ctx, e, key))
	}
	return fired
}
