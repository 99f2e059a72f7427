package scheduler

// ShouldTrigger reports whether e's time equals the tick's minute.
// Seconds are ignored, so a match holds for the whole minute.
func ShouldTrigger(e Entry, t Tick) bool {
	if e.Time == "" {
		return false
	}
	return e.Time == t.Clock
}

// DayAllowed reports whether e may fire on the tick's weekday.
func DayAllowed(e Entry, t Tick) bool {
	if len(e.Days) == 0 {
		return true
	}
	_, ok := e.Days[t.Weekday]
	return ok
}

// Due folds the day filter and the time match.
func Due(e Entry, t Tick) bool {
	return DayAllowed(e, t) && ShouldTrigger(e, t)
}
