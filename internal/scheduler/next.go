package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronDow maps weekday tags to cron day-of-week numbers (Sunday = 0).
var cronDow = map[string]int{"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6}

// CronSpec renders e as a standard 5-field cron expression. It returns false
// when e can never fire (no/malformed time, or only unknown day tags).
func CronSpec(e Entry) (string, bool) {
	hh, mm, err := parseClock(e.Time)
	if err != nil {
		return "", false
	}
	dow := "*"
	if len(e.Days) > 0 {
		nums := make([]int, 0, len(e.Days))
		for d := range e.Days {
			if n, ok := cronDow[d]; ok {
				nums = append(nums, n)
			}
		}
		if len(nums) == 0 {
			return "", false
		}
		sort.Ints(nums)
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.Itoa(n)
		}
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d * * %s", mm, hh, dow), true
}

// NextFire returns the first minute strictly after from (in from's location)
// at which e is due.
func NextFire(e Entry, from time.Time) (time.Time, bool) {
	spec, ok := CronSpec(e)
	if !ok {
		return time.Time{}, false
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, false
	}
	next := sched.Next(from)
	return next, !next.IsZero()
}

// parseClock parses a strict "HH:MM" 24-hour time.
func parseClock(v string) (int, int, error) {
	if len(v) != 5 || v[2] != ':' || !isDigits(v[:2]) || !isDigits(v[3:]) {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	h, err := strconv.Atoi(v[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(v[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return h, m, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
