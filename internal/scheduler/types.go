package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// weekdayTags are the day names accepted in config, Monday first.
var weekdayTags = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// WeekdayTag returns the lowercase three-letter tag for wd.
func WeekdayTag(wd time.Weekday) string {
	return weekdayTags[(int(wd)+6)%7]
}

// Entry is one schedule item. Entries are built once at startup and never
// mutated.
type Entry struct {
	Name string
	// Time is "HH:MM" in the scheduler's location. Empty never fires.
	Time string
	// Days holds lowercase weekday tags. Empty means every day.
	Days map[string]struct{}
	// Audio is the file to play. Empty fires without sound.
	Audio    string
	Repeat   int
	Interval time.Duration
}

// NewEntry builds an Entry, normalizing day tags and raising repeat and
// interval to at least 1.
func NewEntry(name, clock string, days []string, audio string, repeat, intervalSeconds int) Entry {
	e := Entry{
		Name:     name,
		Time:     strings.TrimSpace(clock),
		Audio:    strings.TrimSpace(audio),
		Repeat:   max(repeat, 1),
		Interval: time.Duration(max(intervalSeconds, 1)) * time.Second,
	}
	if len(days) > 0 {
		e.Days = make(map[string]struct{}, len(days))
		for _, d := range days {
			e.Days[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
	}
	return e
}

// Tick is the instant of one poll iteration.
type Tick struct {
	At      time.Time
	Date    string // YYYY-MM-DD
	Clock   string // HH:MM
	Weekday string // mon..sun
}

func NewTick(t time.Time) Tick {
	return Tick{
		At:      t,
		Date:    t.Format(time.DateOnly),
		Clock:   t.Format("15:04"),
		Weekday: WeekdayTag(t.Weekday()),
	}
}

// DedupKey identifies one firing of an entry on one calendar day.
type DedupKey struct {
	Name string
	Time string
	Date string
}

func KeyFor(e Entry, t Tick) DedupKey {
	return DedupKey{Name: e.Name, Time: e.Time, Date: t.Date}
}

func (k DedupKey) String() string { return k.Name + "-" + k.Time + "-" + k.Date }

// Outcome is the result of running one entry's sequence.
type Outcome struct {
	Name string
	// Fired is true whenever the sequencer ran; the key is marked either way.
	Fired   bool
	Success bool
	// Plays counts backend invocations, including a failed one.
	Plays int
	Err   error
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return o.Name + " failed after " + strconv.Itoa(o.Plays) + " play(s)"
	case o.Plays == 0:
		return o.Name + " (silent)"
	default:
		return o.Name + " x" + strconv.Itoa(o.Plays)
	}
}
