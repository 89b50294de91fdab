package wavdir_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/audio/wavdir"
)

func TestSink_WritesOneFilePerDrain(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	out, err := wavdir.New(dir, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	sink, err := out.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	pcm := audio.Float32ToPCM16(make([]float32, 1600))
	for range 2 {
		if err := sink.Write(ctx, pcm, audio.Mono16k); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := sink.Drain(ctx); err != nil {
			t.Fatalf("Drain: %v", err)
		}
	}
	// Drain with nothing queued writes nothing.
	if err := sink.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	for _, name := range []string{"utterance-0001.wav", "utterance-0002.wav"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() != 44+3200 {
			t.Errorf("%s size = %d, want %d", name, info.Size(), 44+3200)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "utterance-0003.wav")); !os.IsNotExist(err) {
		t.Errorf("unexpected third file, err = %v", err)
	}
}

func TestSink_FlushDiscards(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out, err := wavdir.New(dir, "tts")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	sink, _ := out.Open(ctx)
	_ = sink.Write(ctx, []byte{1, 0, 2, 0}, audio.Mono16k)
	sink.Flush()
	if err := sink.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files after Flush, got %d", len(entries))
	}
}

func TestNew_EmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := wavdir.New("", "x"); err == nil {
		t.Fatal("expected error")
	}
}
