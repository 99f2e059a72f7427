package app

import (
	"strings"

	"schoolbell/internal/config"
	"schoolbell/internal/scheduler"
	logx "schoolbell/pkg/logx"
)

func mapLogConfig(cfg *config.Config, opts Options) logx.Config {
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Settings.LogLevel
	}
	return logx.Config{
		Level: level,
		File:  strings.TrimSpace(cfg.Settings.LogFile),
		Fs:    opts.Fs,
	}
}

// mapSchedulerConfig turns the file representation into the immutable
// entries the poll loop runs on. Order is preserved.
func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	loc, err := cfg.Settings.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	timeout, err := cfg.Settings.PlaybackTimeoutDuration()
	if err != nil {
		return scheduler.Config{}, err
	}

	entries := make([]scheduler.Entry, 0, len(cfg.Schedule))
	for _, e := range cfg.Schedule {
		entries = append(entries, scheduler.NewEntry(
			e.DisplayName(),
			e.Time,
			e.Days,
			e.Audio,
			e.RepeatValue(),
			e.IntervalValue(),
		))
	}

	return scheduler.Config{
		Entries:         entries,
		Location:        loc,
		Device:          strings.TrimSpace(cfg.Settings.AudioDevice),
		PlaybackTimeout: timeout,
	}, nil
}
