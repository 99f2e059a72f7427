package audio

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/spf13/afero"
)

// Pulse plays files through a PulseAudio (or pipewire-pulse) server.
//
// Volume is applied per playback stream rather than on the sink, so other
// applications sharing the sink keep their level.
type Pulse struct {
	fs      afero.Fs
	percent atomic.Int32
}

func NewPulse(fs afero.Fs) *Pulse {
	p := &Pulse{fs: fs}
	p.percent.Store(100)
	return p
}

func (p *Pulse) SetVolume(_ context.Context, percent int) error {
	p.percent.Store(int32(min(max(percent, 0), 100)))
	return nil
}

// Play decodes path and streams it to device (a sink name), or to the
// server's default sink when device is empty.
func (p *Pulse) Play(ctx context.Context, path, device string) error {
	if err := requireFile(p.fs, path); err != nil {
		return err
	}
	f, err := p.fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	pcm, err := Decode(f, path)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPlayback, path, err)
	}
	if len(pcm.Samples) == 0 {
		return nil
	}

	c, err := pulse.NewClient()
	if err != nil {
		return fmt.Errorf("%w: pulse connect: %w", ErrPlayback, err)
	}
	defer c.Close()

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(streamVolume(pcm.Channels, int(p.percent.Load()))),
	}
	if pcm.Channels == 1 {
		opts = append(opts, pulse.PlaybackMono)
	} else {
		opts = append(opts, pulse.PlaybackStereo)
	}
	if device = strings.TrimSpace(device); device != "" {
		sink, err := c.SinkByID(device)
		if err != nil {
			return fmt.Errorf("%w: pulse sink %q: %w", ErrPlayback, device, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	stream, err := c.NewPlayback(pcmReader(ctx, pcm.Samples), opts...)
	if err != nil {
		return fmt.Errorf("%w: pulse stream: %w", ErrPlayback, err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	stream.Stop()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayback, path, err)
	}
	return nil
}

// pcmReader feeds samples to the stream and ends early once ctx is done, so
// Drain returns within one buffer of a cancellation.
func pcmReader(ctx context.Context, samples []int16) pulse.Int16Reader {
	pos := 0
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) || ctx.Err() != nil {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
}

func streamVolume(channels, percent int) func(*proto.CreatePlaybackStream) {
	v := uint32(uint64(proto.VolumeNorm) * uint64(percent) / 100)
	vols := make(proto.ChannelVolumes, channels)
	for i := range vols {
		vols[i] = v
	}
	return func(s *proto.CreatePlaybackStream) {
		s.ChannelVolumes = vols
	}
}
