package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolbell/internal/audio"
	"schoolbell/internal/eventbus"
	logx "schoolbell/pkg/logx"
)

// Event types published on the bus after each sequence.
const (
	EventPlayed  = "bell.played"
	EventFailed  = "bell.failed"
	EventSkipped = "bell.skipped"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sequencer runs one entry's repeat/interval policy against a Player.
type Sequencer struct {
	Player audio.Player
	Device string
	// Timeout bounds a single playback. Zero means no deadline.
	Timeout time.Duration
	Sleep   Sleeper
	Ledger  *Ledger
	Log     logx.Logger
	Bus     eventbus.Bus
}

// Play runs e and marks key in the ledger whatever the result.
//
// The sequence stops at the first failed playback; there is no pause after
// the last (or a failed) repetition.
func (s *Sequencer) Play(ctx context.Context, e Entry, key DedupKey) (out Outcome) {
	defer s.Ledger.Mark(key)

	out = Outcome{Name: e.Name, Fired: true}
	log := s.Log.With(logx.String("entry", e.Name), logx.String("time", e.Time))

	if e.Audio == "" {
		log.Info(fmt.Sprintf("Skipping %s: no audio configured.", e.Name))
		out.Success = true
		s.publish(EventSkipped, out)
		return out
	}

	log.Info(fmt.Sprintf("Playing %s (%s).", e.Name, e.Audio), logx.Int("repeat", e.Repeat))

	sleep := s.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	repeat := max(e.Repeat, 1)
	for i := 0; i < repeat; i++ {
		out.Plays++
		if err := s.playOnce(ctx, e.Audio); err != nil {
			out.Err = fmt.Errorf("play %d/%d: %w", i+1, repeat, err)
			break
		}
		if i < repeat-1 {
			if err := sleep(ctx, e.Interval); err != nil {
				out.Err = fmt.Errorf("interval after play %d/%d: %w", i+1, repeat, err)
				break
			}
		}
	}

	if out.Err != nil {
		if errors.Is(out.Err, context.Canceled) {
			log.Warn(fmt.Sprintf("Playback of %s interrupted.", e.Name), logx.Int("plays", out.Plays))
		} else {
			log.Error(fmt.Sprintf("Failed to play %s.", e.Name), logx.Int("plays", out.Plays), logx.Err(out.Err))
		}
		s.publish(EventFailed, out)
		return out
	}

	out.Success = true
	s.publish(EventPlayed, out)
	return out
}

func (s *Sequencer) playOnce(ctx context.Context, path string) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Player.Play(ctx, path, s.Device)
}

func (s *Sequencer) publish(typ string, out Outcome) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(eventbus.Event{Type: typ, Data: out})
}
