package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	out   []byte
	err   error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	return f.out, f.err
}

func newTestALSA(t *testing.T, files ...string) (*ALSA, *fakeRunner) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fr := &fakeRunner{}
	return NewALSA(fs).WithRunner(fr.run), fr
}

func TestALSAPlayCommand(t *testing.T) {
	t.Parallel()
	a, fr := newTestALSA(t, "/srv/bell.wav")

	if err := a.Play(context.Background(), "/srv/bell.wav", ""); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := a.Play(context.Background(), "/srv/bell.wav", "hw:1,0"); err != nil {
		t.Fatalf("Play with device: %v", err)
	}

	want := []call{
		{name: "aplay", args: []string{"-q", "/srv/bell.wav"}},
		{name: "aplay", args: []string{"-q", "-D", "hw:1,0", "/srv/bell.wav"}},
	}
	if !reflect.DeepEqual(fr.calls, want) {
		t.Fatalf("calls = %+v, want %+v", fr.calls, want)
	}
}

func TestALSAPlayMissingFile(t *testing.T) {
	t.Parallel()
	a, fr := newTestALSA(t)

	err := a.Play(context.Background(), "/srv/missing.wav", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(fr.calls) != 0 {
		t.Fatalf("aplay must not run for a missing file, got %d calls", len(fr.calls))
	}
}

func TestALSAPlayFailure(t *testing.T) {
	t.Parallel()
	a, fr := newTestALSA(t, "/srv/bell.wav")
	fr.err = errors.New("exit status 1")
	fr.out = []byte("aplay: main:831: audio open error: No such file or directory\n")

	err := a.Play(context.Background(), "/srv/bell.wav", "")
	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
	if !strings.Contains(err.Error(), "audio open error") {
		t.Fatalf("expected aplay output in error: %v", err)
	}
}

func TestALSASetVolume(t *testing.T) {
	t.Parallel()
	a, fr := newTestALSA(t)

	_ = a.SetVolume(context.Background(), 90)
	_ = a.SetVolume(context.Background(), 250)

	want := []call{
		{name: "amixer", args: []string{"sset", "Master", "90%"}},
		{name: "amixer", args: []string{"sset", "Master", "100%"}},
	}
	if !reflect.DeepEqual(fr.calls, want) {
		t.Fatalf("calls = %+v, want %+v", fr.calls, want)
	}
}

func TestSetVolumeBestEffortSwallowsMissingTool(t *testing.T) {
	t.Parallel()
	a, fr := newTestALSA(t)
	fr.err = exec.ErrNotFound

	if err := a.SetVolume(context.Background(), 50); !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("SetVolume err = %v", err)
	}
	// must not panic or report anything
	SetVolumeBestEffort(context.Background(), a, 50)
	SetVolumeBestEffort(context.Background(), nil, 50)
}

func TestNewBackend(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	if b, err := New("", fs); err != nil {
		t.Fatalf("New(\"\"): %v", err)
	} else if _, ok := b.(*ALSA); !ok {
		t.Fatalf("default backend = %T, want *ALSA", b)
	}
	if b, err := New("Pulse", fs); err != nil {
		t.Fatalf("New(Pulse): %v", err)
	} else if _, ok := b.(*Pulse); !ok {
		t.Fatalf("pulse backend = %T", b)
	}
	if _, err := New("jack", fs); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestPulseMissingFile(t *testing.T) {
	t.Parallel()
	p := NewPulse(afero.NewMemMapFs())
	if err := p.Play(context.Background(), "/nope.wav", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPulseUndecodableFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/bell.mp3", []byte("ID3"), 0o644)
	p := NewPulse(fs)

	err := p.Play(context.Background(), "/bell.mp3", "")
	if !errors.Is(err, ErrPlayback) || !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrPlayback wrapping ErrUnsupported", err)
	}
}

// wavBytes builds a PCM WAV file with an extra chunk before "data".
func wavBytes(channels, rate, bits int, payload []byte) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("RIFF")
	_ = binary.Write(&b, le, uint32(0))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	_ = binary.Write(&b, le, uint32(16))
	_ = binary.Write(&b, le, uint16(wavFormatPCM))
	_ = binary.Write(&b, le, uint16(channels))
	_ = binary.Write(&b, le, uint32(rate))
	_ = binary.Write(&b, le, uint32(rate*channels*bits/8))
	_ = binary.Write(&b, le, uint16(channels*bits/8))
	_ = binary.Write(&b, le, uint16(bits))

	b.WriteString("LIST")
	_ = binary.Write(&b, le, uint32(3))
	b.Write([]byte{'a', 'b', 'c', 0}) // odd size + pad byte

	b.WriteString("data")
	_ = binary.Write(&b, le, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

func TestDecodeWAV16Stereo(t *testing.T) {
	t.Parallel()
	samples := []int16{0, 1000, -1000, 32767, -32768, 5}
	var payload bytes.Buffer
	_ = binary.Write(&payload, binary.LittleEndian, samples)

	pcm, err := Decode(bytes.NewReader(wavBytes(2, 8000, 16, payload.Bytes())), "bell.WAV")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pcm.Channels != 2 || pcm.SampleRate != 8000 {
		t.Fatalf("format = %d ch @ %d Hz", pcm.Channels, pcm.SampleRate)
	}
	if !reflect.DeepEqual(pcm.Samples, samples) {
		t.Fatalf("samples = %v, want %v", pcm.Samples, samples)
	}
}

func TestDecodeWAV8Mono(t *testing.T) {
	t.Parallel()
	pcm, err := Decode(bytes.NewReader(wavBytes(1, 4, 8, []byte{128, 255, 0, 128})), "tick.wav")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []int16{0, 127 << 8, -128 << 8, 0}
	if !reflect.DeepEqual(pcm.Samples, want) {
		t.Fatalf("samples = %v, want %v", pcm.Samples, want)
	}
	if pcm.Duration() != time.Second {
		t.Fatalf("Duration = %v, want 1s", pcm.Duration())
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	cases := map[string][]byte{
		"garbage.wav":  []byte("not a wav file at all"),
		"24bit.wav":    wavBytes(1, 8000, 24, make([]byte, 6)),
		"surround.wav": wavBytes(6, 8000, 16, make([]byte, 12)),
		"song.mp3":     []byte("ID3"),
	}
	for name, data := range cases {
		if _, err := Decode(bytes.NewReader(data), name); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("%s: err = %v, want ErrUnsupported", name, err)
		}
	}
}
