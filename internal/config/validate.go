package config

import (
	"fmt"
	"regexp"
	"strings"
)

var reClock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var dayTags = map[string]struct{}{
	"mon": {}, "tue": {}, "wed": {}, "thu": {}, "fri": {}, "sat": {}, "sun": {},
}

// Validate reports values that load fine but will not behave as the author
// probably intended. None of them stop the service: an entry with a malformed
// time simply never fires, and an unknown day tag never matches.
//
// Every returned error wraps ErrInvalid.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return nil
	}
	var errs []error

	s := cfg.Settings
	if s.AudioVolume != nil && (*s.AudioVolume < 0 || *s.AudioVolume > 100) {
		errs = append(errs, fmt.Errorf("%w: settings.audio_volume %d out of range 0..100 (clamped)", ErrInvalid, *s.AudioVolume))
	}
	switch s.Backend() {
	case BackendALSA, BackendPulse:
	default:
		errs = append(errs, fmt.Errorf("%w: settings.audio_backend %q (use %q or %q)", ErrInvalid, s.AudioBackend, BackendALSA, BackendPulse))
	}

	for i, e := range cfg.Schedule {
		where := fmt.Sprintf("schedule[%d] (%s)", i, e.DisplayName())
		if t := e.Time; t == "" {
			errs = append(errs, fmt.Errorf("%w: %s: time not set; entry never fires", ErrInvalid, where))
		} else if !reClock.MatchString(t) {
			errs = append(errs, fmt.Errorf("%w: %s: time %q is not HH:MM; entry never fires", ErrInvalid, where, t))
		}
		for _, d := range e.Days {
			if _, ok := dayTags[strings.ToLower(strings.TrimSpace(d))]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s: unknown day %q", ErrInvalid, where, d))
			}
		}
		if e.Repeat != nil && *e.Repeat < 1 {
			errs = append(errs, fmt.Errorf("%w: %s: repeat %d raised to 1", ErrInvalid, where, *e.Repeat))
		}
		if e.IntervalSeconds != nil && *e.IntervalSeconds < 1 {
			errs = append(errs, fmt.Errorf("%w: %s: interval_seconds %d raised to 1", ErrInvalid, where, *e.IntervalSeconds))
		}
	}
	return errs
}
