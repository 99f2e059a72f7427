package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"schoolbell/internal/config"
	"schoolbell/internal/runtime/sdnotify"
	"schoolbell/internal/runtime/supervisor"
	"schoolbell/internal/scheduler"
)

const appYAML = `
settings:
  audio_device: "hw:1,0"
  audio_volume: 75
  log_file: /var/log/schoolbell/bell.log
  timezone: UTC
  watch_config: false
schedule:
  - name: Morning
    time: "07:30"
    audio: /srv/bell/morning.wav
    repeat: 2
    interval_seconds: 1
  - name: Silent
    time: "07:30"
  - name: Weekend
    time: "07:30"
    days: [sat, sun]
    audio: /srv/bell/weekend.wav
`

type fakeBackend struct {
	mu      sync.Mutex
	plays   []string
	volumes []int
	panicOn string
}

func (b *fakeBackend) Play(_ context.Context, path, device string) error {
	if path == b.panicOn {
		panic("device exploded")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plays = append(b.plays, path+"@"+device)
	return nil
}

func (b *fakeBackend) SetVolume(_ context.Context, percent int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volumes = append(b.volumes, percent)
	return errors.New("amixer: not found")
}

func (b *fakeBackend) snapshot() ([]string, []int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.plays...), append([]int(nil), b.volumes...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type notifyLog struct {
	mu     sync.Mutex
	states []string
}

func (n *notifyLog) send(state string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return true, nil
}

func (n *notifyLog) joined() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return strings.Join(n.states, "|")
}

func newTestApp(t *testing.T, yaml string, backend *fakeBackend, now time.Time, nl *notifyLog) (*App, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, config.DefaultPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(Options{
		Fs:               fs,
		Backend:          backend,
		LogLevel:         "debug",
		SchedulerOptions: []scheduler.Option{scheduler.WithClock(fixedClock{t: now}), scheduler.WithSleeper(func(context.Context, time.Duration) error { return nil })},
		Notify: []sdnotify.Option{
			sdnotify.WithSend(nl.send),
			sdnotify.WithWatchdog(func() (time.Duration, error) { return 0, nil }),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, fs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAppRingsDueEntries(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	nl := &notifyLog{}
	// 2026-10-19 is a Monday
	a, fs := newTestApp(t, appYAML, backend, time.Date(2026, 10, 19, 7, 30, 12, 0, time.UTC), nl)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		plays, _ := backend.snapshot()
		return len(plays) >= 2
	})
	// a few more ticks within the same minute must not re-fire
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	plays, volumes := backend.snapshot()
	if strings.Join(plays, ",") != "/srv/bell/morning.wav@hw:1,0,/srv/bell/morning.wav@hw:1,0" {
		t.Fatalf("plays = %v", plays)
	}
	if len(volumes) != 1 || volumes[0] != 75 {
		t.Fatalf("volumes = %v, want [75]", volumes)
	}

	logData, err := afero.ReadFile(fs, "/var/log/schoolbell/bell.log")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	log := string(logData)
	for _, want := range []string{
		"] School bell service started.",
		"] Playing Morning (/srv/bell/morning.wav).",
		"] Skipping Silent: no audio configured.",
		"] School bell service stopped.",
	} {
		if !strings.Contains(log, want) {
			t.Fatalf("log missing %q:\n%s", want, log)
		}
	}
	if strings.Contains(log, "Playing Weekend") {
		t.Fatalf("weekend entry fired on Monday:\n%s", log)
	}
	if got := nl.joined(); !strings.HasPrefix(got, "READY=1|STATUS=running") || !strings.Contains(got, "STOPPING=1") {
		t.Fatalf("notify states = %q", got)
	}
}

func TestAppPanicIsFatal(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{panicOn: "/srv/bell/morning.wav"}
	a, _ := newTestApp(t, appYAML, backend, time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC), &notifyLog{})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-a.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after a panic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := a.Stop(ctx)
	if !errors.Is(err, supervisor.ErrPanic) || !errors.Is(a.Err(), supervisor.ErrPanic) {
		t.Fatalf("Stop err = %v, Err = %v; want ErrPanic", err, a.Err())
	}
	if !strings.Contains(a.Err().Error(), "device exploded") {
		t.Fatalf("panic text missing from %q", a.Err())
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		yaml  string
		check func(error) bool
	}{
		{"missing file", "", func(err error) bool { return errors.Is(err, os.ErrNotExist) }},
		{"malformed yaml", "settings: [", func(err error) bool { return strings.Contains(err.Error(), "parse config") }},
		{"bad timezone", "settings:\n  timezone: Mars/Olympus\n", func(err error) bool { return strings.Contains(err.Error(), "settings.timezone") }},
		{"bad timeout", "settings:\n  playback_timeout: soon\n", func(err error) bool { return strings.Contains(err.Error(), "settings.playback_timeout") }},
		{"bad backend", "settings:\n  audio_backend: jack\n", func(err error) bool { return strings.Contains(err.Error(), "settings.audio_backend") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tc.yaml != "" {
				if err := afero.WriteFile(fs, config.DefaultPath, []byte(tc.yaml), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			_, err := New(Options{Fs: fs})
			if err == nil || !tc.check(err) {
				t.Fatalf("New err = %v", err)
			}
		})
	}
}

func TestMapSchedulerConfigDefaults(t *testing.T) {
	t.Parallel()
	zero, neg := 0, -5
	cfg := &config.Config{
		Settings: config.Settings{AudioDevice: " hw:0 ", PlaybackTimeout: "45s"},
		Schedule: []config.Entry{
			{Time: "08:00", Audio: "a.wav"},
			{Name: "B", Time: "09:00", Days: []string{"MON"}, Repeat: &zero, IntervalSeconds: &neg},
		},
	}
	sc, err := mapSchedulerConfig(cfg)
	if err != nil {
		t.Fatalf("mapSchedulerConfig: %v", err)
	}
	if sc.Device != "hw:0" || sc.PlaybackTimeout != 45*time.Second || sc.Location != time.Local {
		t.Fatalf("unexpected config %+v", sc)
	}
	a, b := sc.Entries[0], sc.Entries[1]
	if a.Name != config.DefaultEntryName || a.Repeat != 1 || a.Interval != 2*time.Second {
		t.Fatalf("defaults not applied: %+v", a)
	}
	if _, ok := b.Days["mon"]; !ok || b.Repeat != 1 || b.Interval != time.Second {
		t.Fatalf("clamping not applied: %+v", b)
	}
}

func TestCheckReport(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	yaml := appYAML + `
  - name: Broken
    time: "7:5"
    days: [funday]
`
	if err := afero.WriteFile(fs, "/tmp/bell.yml", []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	warnings, err := Check(&buf, "/tmp/bell.yml", fs, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"backend:  alsa (device hw:1,0, volume 75%)",
		"timezone: UTC",
		"Tue 2026-10-20 07:30", // Morning, next day
		"Sat 2026-10-24 07:30", // Weekend
		"never",                // Broken
		"sat,sun",
		"every day",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	// Broken: malformed time and unknown day
	if warnings != 2 || !strings.Contains(out, "2 warning(s):") {
		t.Fatalf("warnings = %d, want 2:\n%s", warnings, out)
	}
}
