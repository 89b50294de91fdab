// Package azure provides a translation provider backed by the Azure AI
// Translator v3 REST API.
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

	"github.com/MrWong99/relayvox/pkg/provider/translate"
)

const (
	// DefaultEndpoint is the global Translator endpoint.
	DefaultEndpoint = "https://api.cognitive.microsofttranslator.com"
	apiVersion      = "3.0"
	defaultTimeout  = 10 * time.Second
)

var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithEndpoint overrides the Translator endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithRegion sets the Ocp-Apim-Subscription-Region header. Required for
// regional and multi-service resources.
func WithRegion(region string) Option {
	return func(p *Provider) { p.region = region }
}

// WithHTTPClient replaces the HTTP client. The default has a 10 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements translate.Provider using Azure Translator.
type Provider struct {
	key        string
	endpoint   string
	region     string
	httpClient *http.Client
}

// New creates an Azure Translator provider for the given subscription key.
func New(key string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure translate: key must not be empty")
	}
	p := &Provider{
		key:        key,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	p.endpoint = strings.TrimRight(p.endpoint, "/")
	if p.endpoint == "" {
		return nil, errors.New("azure translate: endpoint must not be empty")
	}
	return p, nil
}

// NewLanguageList creates a keyless provider that can only serve
// [Provider.Languages]. Translate calls on it fail with an auth error.
func NewLanguageList(opts ...Option) *Provider {
	p := &Provider{endpoint: DefaultEndpoint, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, o := range opts {
		o(p)
	}
	p.endpoint = strings.TrimRight(p.endpoint, "/")
	return p
}

type translateItem struct {
	Text string `json:"text"`
}

type translateResult struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text string, opts translate.Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", translate.ErrEmptyText
	}
	if err := opts.Validate(); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("to", opts.To)
	if opts.From != "" {
		q.Set("from", opts.From)
	}

	body, err := json.Marshal([]translateItem{{Text: text}})
	if err != nil {
		return "", fmt.Errorf("azure translate: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/translate?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("azure translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	p.authorize(req)

	var results []translateResult
	if err := p.do(req, &results); err != nil {
		return "", err
	}
	if len(results) == 0 || len(results[0].Translations) == 0 {
		return "", nil
	}
	return strings.TrimSpace(results[0].Translations[0].Text), nil
}

// LanguageInfo is one entry of the Translator language list.
type LanguageInfo struct {
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
	Dir        string `json:"dir"`
}

// Languages fetches the languages supported for text translation, keyed by
// translator code. The endpoint needs no subscription key.
func (p *Provider) Languages(ctx context.Context) (map[string]LanguageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.endpoint+"/languages?api-version="+apiVersion+"&scope=translation", nil)
	if err != nil {
		return nil, fmt.Errorf("azure translate: build request: %w", err)
	}
	var out struct {
		Translation map[string]LanguageInfo `json:"translation"`
	}
	if err := p.do(req, &out); err != nil {
		return nil, err
	}
	return out.Translation, nil
}

func (p *Provider) authorize(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	if p.region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", p.region)
	}
}

func (p *Provider) do(req *http.Request, into any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("azure translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("azure translate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("azure translate: decode response: %w", err)
	}
	return nil
}
