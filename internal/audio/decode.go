package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mewkiz/flac"
)

// PCM is decoded audio: interleaved signed 16-bit samples.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration returns the play length of the PCM data.
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// Decode reads a WAV or FLAC stream, picking the codec from name's extension.
func Decode(r io.Reader, name string) (*PCM, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return decodeWAV(b)
	case ".flac":
		return decodeFLAC(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
	}
}

const wavFormatPCM = 1

// decodeWAV walks the RIFF chunks and converts 8/16-bit PCM to int16.
func decodeWAV(data []byte) (*PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupported)
	}
	r := bytes.NewReader(data[12:])

	var (
		format   uint16
		channels uint16
		rate     uint32
		bits     uint16
		haveFmt  bool
		payload  []byte
	)
	for payload == nil {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		// Recorders sometimes leave the size unpatched; take what is there.
		size := min(int64(hdr.Size), int64(r.Len()))
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("wav chunk %q: %w", hdr.ID[:], err)
		}
		// chunks are word aligned
		if hdr.Size%2 == 1 {
			_, _ = r.ReadByte()
		}

		switch string(hdr.ID[:]) {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupported)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			payload = body
		}
	}

	if !haveFmt || payload == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupported)
	}
	if format != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav encoding %d (only PCM)", ErrUnsupported, format)
	}
	if channels == 0 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, channels)
	}

	pcm := &PCM{SampleRate: int(rate), Channels: int(channels)}
	switch bits {
	case 16:
		pcm.Samples = make([]int16, len(payload)/2)
		for i := range pcm.Samples {
			pcm.Samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
		}
	case 8:
		// 8-bit WAV is unsigned with a 128 bias
		pcm.Samples = make([]int16, len(payload))
		for i, b := range payload {
			pcm.Samples[i] = int16(int(b)-128) << 8
		}
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}
	return pcm, nil
}

// decodeFLAC decodes every frame and rescales samples to 16 bits.
func decodeFLAC(r io.Reader) (*PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels == 0 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, channels)
	}
	shift := int(stream.Info.BitsPerSample) - 16

	pcm := &PCM{SampleRate: int(stream.Info.SampleRate), Channels: channels}
	if n := stream.Info.NSamples; n > 0 {
		pcm.Samples = make([]int16, 0, int(n)*channels)
	}
	for {
		f, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac frame: %w", err)
		}
		if len(f.Subframes) != channels {
			return nil, fmt.Errorf("%w: frame with %d subframes", ErrUnsupported, len(f.Subframes))
		}
		n := f.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				s := f.Subframes[ch].Samples[i]
				if shift > 0 {
					s >>= shift
				} else if shift < 0 {
					s <<= -shift
				}
				pcm.Samples = append(pcm.Samples, int16(s))
			}
		}
	}
	return pcm, nil
}
