package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPath is the well-known config location used when no --config is given.
const DefaultPath = "/etc/schoolbell/config.yml"

// ErrInvalid marks a config value that was accepted but cannot be honored.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultVolume          = 90
	DefaultRepeat          = 1
	DefaultIntervalSeconds = 2
	DefaultEntryName       = "(unnamed)"

	BackendALSA  = "alsa"
	BackendPulse = "pulse"
)

// Config is the whole config document.
//
// Missing sections decode as zero values; unknown keys are ignored.
type Config struct {
	Settings Settings `yaml:"settings" json:"settings"`
	Schedule []Entry  `yaml:"schedule" json:"schedule"`
}

// Settings holds process-wide knobs.
//
// Pointers distinguish "omitted" (use the default) from an explicit zero/false.
//
// Defaults (when fields are omitted):
//   - audio_volume: 90
//   - audio_backend: "alsa"
//   - log_level: "info"
//   - playback_timeout: "0s" (disabled)
//   - watch_config: true
type Settings struct {
	AudioDevice  string `yaml:"audio_device" json:"audio_device"`
	AudioVolume  *int   `yaml:"audio_volume" json:"audio_volume,omitempty"`
	AudioBackend string `yaml:"audio_backend" json:"audio_backend,omitempty"`

	// LogFile is the bell log path. Empty logs to stdout.
	LogFile  string `yaml:"log_file" json:"log_file"`
	LogLevel string `yaml:"log_level" json:"log_level,omitempty"`

	// Timezone is an IANA zone name, e.g. "Asia/Jakarta". Empty means local time.
	Timezone string `yaml:"timezone" json:"timezone,omitempty"`

	// PlaybackTimeout is a Go duration string (e.g. "30s", "2m").
	// Use "0s" to let a single playback run without a deadline.
	PlaybackTimeout string `yaml:"playback_timeout" json:"playback_timeout,omitempty"`

	WatchConfig *bool `yaml:"watch_config" json:"watch_config,omitempty"`
}

// Entry is one schedule item as written in the config file.
type Entry struct {
	Name            string   `yaml:"name" json:"name"`
	Time            string   `yaml:"time" json:"time"`
	Days            []string `yaml:"days" json:"days"`
	Audio           string   `yaml:"audio" json:"audio"`
	Repeat          *int     `yaml:"repeat" json:"repeat,omitempty"`
	IntervalSeconds *int     `yaml:"interval_seconds" json:"interval_seconds,omitempty"`
}

// Volume returns the configured volume, clamped to 0..100.
func (s Settings) Volume() int {
	if s.AudioVolume == nil {
		return DefaultVolume
	}
	return min(max(*s.AudioVolume, 0), 100)
}

// Backend returns the normalized audio backend name.
func (s Settings) Backend() string {
	b := strings.ToLower(strings.TrimSpace(s.AudioBackend))
	if b == "" {
		return BackendALSA
	}
	return b
}

func (s Settings) WatchEnabled() bool {
	return s.WatchConfig == nil || *s.WatchConfig
}

// Location resolves the configured timezone.
func (s Settings) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("settings.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

func (s Settings) PlaybackTimeoutDuration() (time.Duration, error) {
	return ParseDurationField("settings.playback_timeout", s.PlaybackTimeout)
}

// DisplayName returns the entry name, or DefaultEntryName when empty.
func (e Entry) DisplayName() string {
	if n := strings.TrimSpace(e.Name); n != "" {
		return n
	}
	return DefaultEntryName
}

// RepeatValue returns the raw configured repeat, or the default when omitted.
// Clamping to >= 1 happens in the scheduler.
func (e Entry) RepeatValue() int {
	if e.Repeat == nil {
		return DefaultRepeat
	}
	return *e.Repeat
}

// IntervalValue returns the raw configured interval in seconds, or the default when omitted.
func (e Entry) IntervalValue() int {
	if e.IntervalSeconds == nil {
		return DefaultIntervalSeconds
	}
	return *e.IntervalSeconds
}
