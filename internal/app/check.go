package app

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"

	"schoolbell/internal/config"
	"schoolbell/internal/scheduler"
)

// Check loads and validates the config at path and writes a summary of every
// entry with its next fire time after now. It returns the number of warnings.
// A config that can't be loaded is an error.
func Check(w io.Writer, path string, fs afero.Fs, now time.Time) (int, error) {
	cfgm := config.NewManager(path, fs)
	cfg, err := cfgm.Load()
	if err != nil {
		return 0, err
	}
	warnings := config.Validate(cfg)

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return len(warnings), err
	}
	now = now.In(schedCfg.Location)

	device := schedCfg.Device
	if device == "" {
		device = "(default)"
	}
	fmt.Fprintf(w, "config:   %s\n", cfgm.Path())
	fmt.Fprintf(w, "backend:  %s (device %s, volume %d%%)\n", cfg.Settings.Backend(), device, cfg.Settings.Volume())
	fmt.Fprintf(w, "timezone: %s\n", schedCfg.Location)
	fmt.Fprintf(w, "entries:  %d\n\n", len(schedCfg.Entries))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIME\tDAYS\tAUDIO\tREPEAT\tNEXT")
	for _, e := range schedCfg.Entries {
		next := "never"
		if t, ok := scheduler.NextFire(e, now); ok {
			next = t.Format("Mon 2006-01-02 15:04")
		}
		audio := e.Audio
		if audio == "" {
			audio = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dx/%s\t%s\n",
			e.Name, orDash(e.Time), daysLabel(e), audio, e.Repeat, e.Interval, next)
	}
	if err := tw.Flush(); err != nil {
		return len(warnings), err
	}

	if len(warnings) > 0 {
		fmt.Fprintf(w, "\n%d warning(s):\n", len(warnings))
		for _, e := range warnings {
			fmt.Fprintf(w, "  - %v\n", e)
		}
	}
	return len(warnings), nil
}

func daysLabel(e scheduler.Entry) string {
	if len(e.Days) == 0 {
		return "every day"
	}
	order := map[string]int{}
	for i := time.Sunday; i <= time.Saturday; i++ {
		order[scheduler.WeekdayTag(i)] = (int(i) + 6) % 7
	}
	days := make([]string, 0, len(e.Days))
	for d := range e.Days {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		oi, iok := order[days[i]]
		oj, jok := order[days[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return days[i] < days[j]
	})
	return strings.Join(days, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
