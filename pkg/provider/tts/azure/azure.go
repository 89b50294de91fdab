// Package azure provides a TTS provider backed by the Azure Speech
// text-to-speech REST API. Requests are SSML documents; the response body is
// raw 16 kHz 16-bit mono PCM streamed as it is produced.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/provider/tts"
)

const (
	synthesizeTemplate = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
	voicesTemplate     = "https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list"
	outputFormat       = "raw-16khz-16bit-mono-pcm"
	readChunk          = 3200
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithEndpoints overrides the synthesis and voice-list URLs. An empty
// argument keeps the regional default.
func WithEndpoints(synthesize, voices string) Option {
	return func(p *Provider) {
		if synthesize != "" {
			p.synthesizeURL = synthesize
		}
		if voices != "" {
			p.voicesURL = voices
		}
	}
}

// WithHTTPClient replaces the HTTP client. The default has no overall
// timeout so long utterances can stream; connection setup is bounded.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider using Azure Speech.
type Provider struct {
	key           string
	synthesizeURL string
	voicesURL     string
	httpClient    *http.Client
}

// New creates an Azure TTS provider for the given key and region.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure tts: key must not be empty")
	}
	p := &Provider{
		key: key,
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}},
	}
	if region != "" {
		p.synthesizeURL = fmt.Sprintf(synthesizeTemplate, region)
		p.voicesURL = fmt.Sprintf(voicesTemplate, region)
	}
	for _, o := range opts {
		o(p)
	}
	if p.synthesizeURL == "" || p.voicesURL == "" {
		return nil, errors.New("azure tts: region must not be empty")
	}
	return p, nil
}

// OutputFormat implements tts.Provider.
func (p *Provider) OutputFormat() audio.Format { return audio.Mono16k }

// localeOf derives "fr-FR" from "fr-FR-DeniseNeural".
func localeOf(voice tts.VoiceProfile) string {
	if voice.Locale != "" {
		return voice.Locale
	}
	parts := strings.SplitN(voice.ID, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// BuildSSML renders text as an SSML document for voice.
func BuildSSML(text string, voice tts.VoiceProfile) (string, error) {
	var esc bytes.Buffer
	if err := xml.EscapeText(&esc, []byte(text)); err != nil {
		return "", err
	}
	body := esc.String()
	if voice.SpeedFactor > 0 && voice.SpeedFactor != 1 {
		body = fmt.Sprintf(`<prosody rate="%.2f">%s</prosody>`, voice.SpeedFactor, body)
	}
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		localeOf(voice), voice.ID, body), nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("azure tts: voice.ID must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("azure tts: text must not be empty")
	}
	ssml, err := BuildSSML(text, voice)
	if err != nil {
		return nil, fmt.Errorf("azure tts: build ssml: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.synthesizeURL, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure tts: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", "relayvox")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure tts: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		for {
			buf := make([]byte, readChunk)
			n, err := io.ReadFull(resp.Body, buf)
			if n > 0 {
				select {
				case out <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
					slog.Warn("azure tts: stream interrupted", "voice", voice.ID, "err", err)
				}
				return
			}
		}
	}()
	return out, nil
}

type voiceEntry struct {
	ShortName   string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	LocalName   string `json:"LocalName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
	VoiceType   string `json:"VoiceType"`
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.voicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("azure tts: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure tts: list voices: status %d", resp.StatusCode)
	}

	var entries []voiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("azure tts: decode voices: %w", err)
	}
	voices := make([]tts.VoiceProfile, 0, len(entries))
	for _, e := range entries {
		meta := map[string]string{}
		if e.LocalName != "" {
			meta["local_name"] = e.LocalName
		}
		if e.VoiceType != "" {
			meta["voice_type"] = e.VoiceType
		}
		voices = append(voices, tts.VoiceProfile{
			ID:       e.ShortName,
			Name:     e.DisplayName,
			Locale:   e.Locale,
			Gender:   e.Gender,
			Provider: "azure",
			Metadata: meta,
		})
	}
	return voices, nil
}
