package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// Encode writes 16-bit PCM in format f to w as a WAV file.
func Encode(w io.WriteSeeker, pcm []byte, f audio.Format) error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("wavfile: invalid format %s", f)
	}
	if f.Channels > 2 {
		return fmt.Errorf("wavfile: unsupported channel count %d", f.Channels)
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   2,
	}
	if err := wav.Encode(w, &pcmStreamer{pcm: pcm, channels: f.Channels}, format); err != nil {
		return fmt.Errorf("wavfile: encode: %w", err)
	}
	return nil
}

// WriteFile writes 16-bit PCM in format f to a new WAV file at path.
func WriteFile(path string, pcm []byte, f audio.Format) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavfile: create %q: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, fh.Close())
	}()
	return Encode(fh, pcm, f)
}

// EncodeBytes returns 16-bit PCM in format f as an in-memory WAV file.
func EncodeBytes(pcm []byte, f audio.Format) ([]byte, error) {
	var buf memFile
	if err := Encode(&buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// memFile is an io.WriteSeeker over a byte slice. wav.Encode seeks back to
// patch the header sizes once the data is written.
type memFile struct {
	data []byte
	pos  int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	n := copy(m.data[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, errors.New("wavfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("wavfile: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}

// pcmStreamer exposes interleaved little-endian int16 PCM as a beep.Streamer.
type pcmStreamer struct {
	pcm      []byte
	channels int
	pos      int
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	frameBytes := 2 * p.channels
	n := 0
	for n < len(samples) && p.pos+frameBytes <= len(p.pcm) {
		l := float64(int16(binary.LittleEndian.Uint16(p.pcm[p.pos:]))) / 32768
		r := l
		if p.channels == 2 {
			r = float64(int16(binary.LittleEndian.Uint16(p.pcm[p.pos+2:]))) / 32768
		}
		samples[n] = [2]float64{l, r}
		p.pos += frameBytes
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error { return nil }
