// Package azure provides an STT provider backed by the Azure Speech
// short-audio REST API. Each utterance is uploaded as a 16-bit mono WAV and
// recognised in a single request.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/relayvox/pkg/audio"
	"github.com/MrWong99/relayvox/pkg/audio/wavfile"
	"github.com/MrWong99/relayvox/pkg/provider/stt"
)

const (
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000
	endpointTemplate  = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithLanguage sets the locale used when a request carries none.
// Defaults to "en-US".
func WithLanguage(locale string) Option {
	return func(p *Provider) { p.language = locale }
}

// WithEndpoint overrides the regional recognition endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithProfanity sets the profanity option: "masked", "removed" or "raw".
func WithProfanity(mode string) Option {
	return func(p *Provider) { p.profanity = mode }
}

// Provider implements stt.Provider using Azure Speech.
type Provider struct {
	key        string
	endpoint   string
	language   string
	profanity  string
	httpClient *http.Client
}

// New creates an Azure STT provider for the given subscription key and
// region (e.g., "eastus").
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure stt: key must not be empty")
	}
	p := &Provider{
		key:        key,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	if p.endpoint == "" {
		if region == "" {
			return nil, errors.New("azure stt: region must not be empty")
		}
		p.endpoint = fmt.Sprintf(endpointTemplate, region)
	}
	return p, nil
}

// recognitionResult is the simple-format response body.
type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// Transcribe implements stt.Provider. NoMatch and silence timeouts yield an
// empty transcript rather than an error.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, opts stt.Options) (stt.Transcript, error) {
	if len(samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	wav, err := wavfile.EncodeBytes(audio.Float32ToPCM16(samples), audio.Format{SampleRate: rate, Channels: 1})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure stt: %w", err)
	}

	u, err := url.Parse(p.endpoint)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure stt: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("language", lang)
	q.Set("format", "simple")
	if p.profanity != "" {
		q.Set("profanity", p.profanity)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(wav))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure stt: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", rate))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure stt: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("azure stt: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res recognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return stt.Transcript{}, fmt.Errorf("azure stt: decode response: %w", err)
	}

	switch res.RecognitionStatus {
	case "Success":
		return stt.Transcript{
			Text:     strings.TrimSpace(res.DisplayText),
			Language: lang,
			// Offsets and durations are in 100 ns ticks.
			Duration: time.Duration(res.Duration) * 100,
		}, nil
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return stt.Transcript{Language: lang}, nil
	default:
		return stt.Transcript{}, fmt.Errorf("azure stt: recognition status %q", res.RecognitionStatus)
	}
}
