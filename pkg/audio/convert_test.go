package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestFloat32ToPCM16_ScalesAndClips(t *testing.T) {
	t.Parallel()

	got := bytesToSamples(audio.Float32ToPCM16([]float32{0, 0.5, 1, -1, 2, -2}))
	want := []int16{0, 16383, 32767, -32767, 32767, -32768}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	t.Parallel()

	got := audio.PCM16ToFloat32(samplesToBytes([]int16{0, 16384, -32768}))
	want := []float32{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPCM16ToFloat32_OddByteCount(t *testing.T) {
	t.Parallel()

	got := audio.PCM16ToFloat32([]byte{1, 2, 3})
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
}

func TestDownmixInt16_Stereo(t *testing.T) {
	t.Parallel()

	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	got := audio.DownmixInt16([]int16{100, 200, -100, -200}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if want := float32(150) / 32768; got[0] != want {
		t.Errorf("sample 0: got %v, want %v", got[0], want)
	}
	if want := float32(-150) / 32768; got[1] != want {
		t.Errorf("sample 1: got %v, want %v", got[1], want)
	}
}

func TestDownmixInt16_NoOverflow(t *testing.T) {
	t.Parallel()

	got := audio.DownmixInt16([]int16{32767, 32767}, 2)
	if got[0] <= 0.99 {
		t.Errorf("got %v, want close to 1", got[0])
	}
}

func TestMonoToStereo16(t *testing.T) {
	t.Parallel()

	got := audio.MonoToStereo16([]int16{100, 200, 300})
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []float32
		src, dst int
		wantLen  int
	}{
		{name: "same rate", in: []float32{0.1, 0.2, 0.3}, src: 16000, dst: 16000, wantLen: 3},
		{name: "upsample 3x", in: []float32{0.1, 0.2}, src: 16000, dst: 48000, wantLen: 6},
		{name: "downsample 3x", in: []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5}, src: 48000, dst: 16000, wantLen: 2},
		{name: "invalid rate", in: []float32{0.1}, src: 0, dst: 16000, wantLen: 1},
		{name: "empty", in: nil, src: 48000, dst: 16000, wantLen: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := audio.Resample(tc.in, tc.src, tc.dst)
			if len(got) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tc.wantLen)
			}
		})
	}
}

func TestResample_FirstSamplePreserved(t *testing.T) {
	t.Parallel()

	got := audio.Resample([]float32{0.25, 0.5}, 16000, 48000)
	if got[0] != 0.25 {
		t.Errorf("first sample: got %v, want 0.25", got[0])
	}
	last := got[len(got)-1]
	if last < 0.4 || last > 0.55 {
		t.Errorf("last sample: got %v, want close to 0.5", last)
	}
}

func TestToMono16_StereoDownsample(t *testing.T) {
	t.Parallel()

	// 6 stereo frames at 48 kHz -> 2 mono samples at 16 kHz.
	pcm := samplesToBytes([]int16{100, 100, 200, 200, 300, 300, 400, 400, 500, 500, 600, 600})
	out := audio.ToMono16(pcm, audio.Format{SampleRate: 48000, Channels: 2}, 16000)
	if got := len(bytesToSamples(out)); got != 2 {
		t.Fatalf("expected 2 samples, got %d", got)
	}
}

func TestToMono16_Passthrough(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{1, 2, 3})
	out := audio.ToMono16(pcm, audio.Mono16k, 16000)
	if &out[0] != &pcm[0] {
		t.Error("expected the same slice for matching format")
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	got := audio.RMS([]float32{0.5, -0.5, 0.5, -0.5})
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Mono16k, "16000Hz mono"},
		{audio.Format{SampleRate: 44100, Channels: 6}, "44100Hz 6ch"},
	}
	for _, tc := range tests {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
