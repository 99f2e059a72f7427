// Package scheduler decides, once per second, which bell entries are due and
// plays them.
//
// The package is responsible for:
//   - matching entries against the current minute and weekday (trigger.go)
//   - remembering what already fired today (ledger.go)
//   - running an entry's repeat/interval sequence (sequencer.go)
//   - driving all of the above from a single polling goroutine (service.go)
//
// Everything runs on the polling goroutine. Playback blocks the loop, so two
// bells never overlap and the ledger takes no locks.
package scheduler
