package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/relayvox/pkg/provider/stt/mock"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
	translatemock "github.com/MrWong99/relayvox/pkg/provider/translate/mock"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/relayvox/pkg/provider/tts/mock"
)

func TestSTTFallback_Failover(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{Err: errTest}
	secondary := &sttmock.Provider{Transcript: stt.Transcript{Text: "hello"}}
	f := NewSTTFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	tr, err := f.Transcribe(context.Background(), []float32{0.1, 0.2}, stt.Options{Language: "en-US"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "hello" {
		t.Errorf("Text = %q", tr.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls primary=%d secondary=%d", primary.CallCount(), secondary.CallCount())
	}
	if secondary.Calls[0].Opts.Language != "en-US" {
		t.Errorf("options not forwarded: %+v", secondary.Calls[0].Opts)
	}
}

func TestSTTFallback_EmptyTranscriptIsSuccess(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{}
	secondary := &sttmock.Provider{Transcript: stt.Transcript{Text: "unused"}}
	f := NewSTTFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	tr, err := f.Transcribe(context.Background(), []float32{0}, stt.Options{})
	if err != nil || tr.Text != "" {
		t.Fatalf("got %+v, %v", tr, err)
	}
	if secondary.CallCount() != 0 {
		t.Error("fallback should not be used for an empty transcript")
	}
	if got := f.Group().Names(); len(got) != 2 || got[0] != "azure" {
		t.Errorf("Names() = %v", got)
	}
}

func TestTranslateFallback(t *testing.T) {
	t.Parallel()
	primary := &translatemock.Provider{Err: errTest}
	secondary := &translatemock.Provider{Func: func(text string, opts translate.Options) (string, error) {
		return text + "@" + opts.To, nil
	}}
	f := NewTranslateFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("openai", secondary)

	got, err := f.Translate(context.Background(), "hello", translate.Options{To: "fr"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello@fr" {
		t.Errorf("got %q", got)
	}
}

func TestTranslateFallback_InvalidOptions(t *testing.T) {
	t.Parallel()
	primary := &translatemock.Provider{Result: "x"}
	f := NewTranslateFallback(primary, "azure", FallbackConfig{})
	if _, err := f.Translate(context.Background(), "hello", translate.Options{}); err == nil {
		t.Fatal("expected error for missing target")
	}
	if primary.CallCount() != 0 {
		t.Error("provider should not be called with invalid options")
	}
	if f.Group().Breaker("azure").State() != StateClosed {
		t.Error("invalid options must not count against the breaker")
	}
}

func TestTTSFallback_Failover(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{Err: errTest}
	secondary := &ttsmock.Provider{Chunks: [][]byte{{1, 0}, {2, 0}}}
	f := NewTTSFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("elevenlabs", secondary)

	ch, err := f.Synthesize(context.Background(), "Bonjour", tts.VoiceProfile{ID: "fr-FR-DeniseNeural"})
	if err != nil {
		t.Fatal(err)
	}
	var n int
	for range ch {
		n++
	}
	if n != 2 {
		t.Errorf("got %d chunks, want 2", n)
	}
	if secondary.SynthesizeCalls[0].Voice.ID != "fr-FR-DeniseNeural" {
		t.Errorf("voice not forwarded: %+v", secondary.SynthesizeCalls[0])
	}
}

func TestTTSFallback_ConvertsFallbackFormat(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{Err: errTest, Format: audio.Mono16k}
	// 32 kHz mono: 4 samples become 2 at 16 kHz.
	secondary := &ttsmock.Provider{
		Format: audio.Format{SampleRate: 32000, Channels: 1},
		Chunks: [][]byte{make([]byte, 8)},
	}
	f := NewTTSFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("coqui", secondary)

	if f.OutputFormat() != audio.Mono16k {
		t.Fatalf("OutputFormat = %v", f.OutputFormat())
	}
	ch, err := f.Synthesize(context.Background(), "Hallo", tts.VoiceProfile{})
	if err != nil {
		t.Fatal(err)
	}
	var total int
	for c := range ch {
		total += len(c)
	}
	if total != 4 {
		t.Errorf("converted bytes = %d, want 4", total)
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{ListErr: errTest}
	secondary := &ttsmock.Provider{Voices: []tts.VoiceProfile{{ID: "v1"}}}
	f := NewTTSFallback(primary, "azure", FallbackConfig{})
	f.AddFallback("elevenlabs", secondary)

	voices, err := f.ListVoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	t.Parallel()
	f := NewTTSFallback(&ttsmock.Provider{Err: errTest}, "azure", FallbackConfig{})
	f.AddFallback("coqui", &ttsmock.Provider{Err: errTest})
	if _, err := f.Synthesize(context.Background(), "x", tts.VoiceProfile{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
