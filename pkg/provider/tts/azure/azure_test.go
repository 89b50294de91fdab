package azure

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New("", "eastus"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := New("k", ""); err == nil {
		t.Error("expected error for missing region")
	}
	p, err := New("k", "westeurope")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.synthesizeURL != "https://westeurope.tts.speech.microsoft.com/cognitiveservices/v1" {
		t.Errorf("synthesize url = %q", p.synthesizeURL)
	}
	if p.voicesURL != "https://westeurope.tts.speech.microsoft.com/cognitiveservices/voices/list" {
		t.Errorf("voices url = %q", p.voicesURL)
	}
}

func TestBuildSSML(t *testing.T) {
	t.Parallel()
	ssml, err := BuildSSML(`Tom & "Jerry" <3`, tts.VoiceProfile{ID: "fr-FR-DeniseNeural"})
	if err != nil {
		t.Fatalf("BuildSSML: %v", err)
	}
	for _, want := range []string{
		`xml:lang="fr-FR"`,
		`<voice name="fr-FR-DeniseNeural">`,
		`Tom &amp; &#34;Jerry&#34; &lt;3`,
	} {
		if !strings.Contains(ssml, want) {
			t.Errorf("ssml missing %q:\n%s", want, ssml)
		}
	}

	fast, _ := BuildSSML("hi", tts.VoiceProfile{ID: "en-US-AriaNeural", Locale: "en-GB", SpeedFactor: 1.25})
	if !strings.Contains(fast, `<prosody rate="1.25">hi</prosody>`) || !strings.Contains(fast, `xml:lang="en-GB"`) {
		t.Errorf("ssml = %s", fast)
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	pcm := bytes.Repeat([]byte{1, 2}, 5000)
	type captured struct{ key, format, ctype, body string }
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- captured{
			key:    r.Header.Get("Ocp-Apim-Subscription-Key"),
			format: r.Header.Get("X-Microsoft-OutputFormat"),
			ctype:  r.Header.Get("Content-Type"),
			body:   string(body),
		}
		_, _ = w.Write(pcm)
	}))
	t.Cleanup(srv.Close)

	p, _ := New("secret", "", WithEndpoints(srv.URL, srv.URL))
	ch, err := p.Synthesize(context.Background(), "Hola", tts.VoiceProfile{ID: "es-ES-ElviraNeural"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	var got []byte
	chunks := 0
	for c := range ch {
		got = append(got, c...)
		chunks++
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm length = %d, want %d", len(got), len(pcm))
	}
	if chunks < 3 {
		t.Errorf("chunks = %d, expected streaming in pieces", chunks)
	}

	c := <-seen
	if c.key != "secret" || c.format != "raw-16khz-16bit-mono-pcm" || c.ctype != "application/ssml+xml" {
		t.Errorf("headers = %+v", c)
	}
	if !strings.Contains(c.body, "Hola") || !strings.Contains(c.body, "es-ES-ElviraNeural") {
		t.Errorf("body = %s", c.body)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	p, _ := New("k", "", WithEndpoints(srv.URL, srv.URL))
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "x-Y-Z"}); err == nil {
		t.Error("expected error for 400")
	}
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice")
	}
	if _, err := p.Synthesize(context.Background(), "", tts.VoiceProfile{ID: "x"}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"ShortName":"fr-FR-DeniseNeural","DisplayName":"Denise","LocalName":"Denise","Gender":"Female","Locale":"fr-FR","VoiceType":"Neural"},
			{"ShortName":"de-DE-ConradNeural","DisplayName":"Conrad","Gender":"Male","Locale":"de-DE"}]`)
	}))
	t.Cleanup(srv.Close)

	p, _ := New("k", "", WithEndpoints(srv.URL, srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("len = %d", len(voices))
	}
	if v := voices[0]; v.ID != "fr-FR-DeniseNeural" || v.Locale != "fr-FR" || v.Gender != "Female" || v.Name != "Denise" || v.Metadata["voice_type"] != "Neural" {
		t.Errorf("voice = %+v", v)
	}
}
