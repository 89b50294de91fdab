package silero

import (
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/relayvox/pkg/provider/vad"
)

func TestNew_EmptyModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	e, err := New("model.onnx", WithLibraryPath("/opt/ort/libonnxruntime.so"), WithIntraOpThreads(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.libPath != "/opt/ort/libonnxruntime.so" || e.threads != 4 {
		t.Errorf("options not applied: %+v", e)
	}
}

func TestNewSession_RejectsUnsupportedRate(t *testing.T) {
	t.Parallel()

	e, _ := New("model.onnx")
	if _, err := e.NewSession(vad.Config{SampleRate: 44100, FrameSize: 512}); err == nil {
		t.Fatal("expected error for 44.1 kHz")
	}
}

func TestContextSize(t *testing.T) {
	t.Parallel()

	if got := contextSize(16000); got != 64 {
		t.Errorf("contextSize(16000) = %d, want 64", got)
	}
	if got := contextSize(8000); got != 32 {
		t.Errorf("contextSize(8000) = %d, want 32", got)
	}
}

// TestSession_Model runs the real model when RELAYVOX_TEST_SILERO_MODEL (and
// optionally RELAYVOX_TEST_ONNXRUNTIME_LIB) are set.
func TestSession_Model(t *testing.T) {
	model := os.Getenv("RELAYVOX_TEST_SILERO_MODEL")
	if model == "" {
		t.Skip("RELAYVOX_TEST_SILERO_MODEL not set")
	}
	e, err := New(model, WithLibraryPath(os.Getenv("RELAYVOX_TEST_ONNXRUNTIME_LIB")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess, err := e.NewSession(vad.Config{SampleRate: 16000, FrameSize: 512})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	p, err := sess.Infer(make([]float32, 512))
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if p > 0.5 {
		t.Errorf("silence scored %v, want < 0.5", p)
	}

	var ie *vad.InferenceError
	if _, err := sess.Infer(make([]float32, 10)); !errors.As(err, &ie) {
		t.Errorf("short frame err = %v, want InferenceError", err)
	}
	sess.Reset()
	if err := sess.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
