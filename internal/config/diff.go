package config

import (
	"reflect"
	"sort"
	"strings"

	logx "schoolbell/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections and
// (2) structured fields describing the change, suitable for logging.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 2)
	attrs := make([]logx.Field, 0, 8)

	if keys := diffSettings(oldCfg.Settings, newCfg.Settings); len(keys) > 0 {
		changed = append(changed, "settings")
		attrs = append(attrs, logx.Strs("settings.changed", keys))
	}

	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		added, removed := diffEntryNames(oldCfg.Schedule, newCfg.Schedule)
		attrs = append(attrs,
			logx.Int("schedule.entries_before", len(oldCfg.Schedule)),
			logx.Int("schedule.entries_after", len(newCfg.Schedule)),
		)
		if len(added) > 0 {
			attrs = append(attrs, logx.Strs("schedule.added", added))
		}
		if len(removed) > 0 {
			attrs = append(attrs, logx.Strs("schedule.removed", removed))
		}
	}

	sort.Strings(changed)
	return changed, attrs
}

func diffSettings(o, n Settings) []string {
	var keys []string
	if strings.TrimSpace(o.AudioDevice) != strings.TrimSpace(n.AudioDevice) {
		keys = append(keys, "audio_device")
	}
	if o.Volume() != n.Volume() {
		keys = append(keys, "audio_volume")
	}
	if o.Backend() != n.Backend() {
		keys = append(keys, "audio_backend")
	}
	if strings.TrimSpace(o.LogFile) != strings.TrimSpace(n.LogFile) {
		keys = append(keys, "log_file")
	}
	if !strings.EqualFold(strings.TrimSpace(o.LogLevel), strings.TrimSpace(n.LogLevel)) {
		keys = append(keys, "log_level")
	}
	if strings.TrimSpace(o.Timezone) != strings.TrimSpace(n.Timezone) {
		keys = append(keys, "timezone")
	}
	if strings.TrimSpace(o.PlaybackTimeout) != strings.TrimSpace(n.PlaybackTimeout) {
		keys = append(keys, "playback_timeout")
	}
	if o.WatchEnabled() != n.WatchEnabled() {
		keys = append(keys, "watch_config")
	}
	return keys
}

// diffEntryNames compares entries by display name. Duplicate names count as
// a multiset so that removing one of two "Break" entries is reported.
func diffEntryNames(oldE, newE []Entry) (added, removed []string) {
	count := map[string]int{}
	for _, e := range oldE {
		count[e.DisplayName()]--
	}
	for _, e := range newE {
		count[e.DisplayName()]++
	}
	for name, c := range count {
		for ; c > 0; c-- {
			added = append(added, name)
		}
		for ; c < 0; c++ {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
