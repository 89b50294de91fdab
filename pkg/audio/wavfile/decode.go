package wavfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// DecodeMono16 decodes a WAV stream, downmixes it to mono and resamples it
// to rate. It returns 16-bit little-endian PCM.
func DecodeMono16(r io.Reader, rate int) ([]byte, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("wavfile: invalid target rate %d", rate)
	}
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode: %w", err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	target := beep.SampleRate(rate)
	if format.SampleRate != target {
		s = beep.Resample(resampleQuality, format.SampleRate, target, s)
	}

	var mono []float32
	buf := make([][2]float64, 1024)
	for {
		n, ok := s.Stream(buf)
		for i := range n {
			mono = append(mono, float32((buf[i][0]+buf[i][1])/2))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("wavfile: stream: %w", err)
	}
	return audio.Float32ToPCM16(mono), nil
}

// DecodeBytesMono16 is [DecodeMono16] over an in-memory WAV file.
func DecodeBytesMono16(data []byte, rate int) ([]byte, error) {
	return DecodeMono16(bytes.NewReader(data), rate)
}
