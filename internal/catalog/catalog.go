// Package catalog knows which languages can be translated and which voices
// can speak them.
//
// A [Catalog] is loaded lazily on first use from, in order of preference,
// JSON files written by [Populate], a live [Fetcher] (Azure Translator and
// Speech), or the embedded six-language fallback. A failing source falls back
// to the embedded data with a warning, so lookups always have an answer.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a language or voice is unknown.
var ErrNotFound = errors.New("catalog: not found")

// Source names reported by [Catalog.Source].
const (
	SourceFiles    = "files"
	SourceRemote   = "remote"
	SourceEmbedded = "embedded"
)

// Voice is one synthesis voice.
type Voice struct {
	ShortName string `json:"short_name"`
	Locale    string `json:"locale"`
	Gender    string `json:"gender"`
	Name      string `json:"name"`
}

// Language is a translator language together with the voices that speak it.
type Language struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	NativeName    string   `json:"native_name"`
	Locales       []string `json:"locales"`
	DefaultLocale string   `json:"default_locale"`
	Voices        []Voice  `json:"voices"`
}

// VoiceNames returns the short names of l's voices in order.
func (l Language) VoiceNames() []string {
	names := make([]string, len(l.Voices))
	for i, v := range l.Voices {
		names[i] = v.ShortName
	}
	return names
}

// HasVoice reports whether name is one of l's voices.
func (l Language) HasVoice(name string) bool {
	return slices.ContainsFunc(l.Voices, func(v Voice) bool { return v.ShortName == name })
}

// HasLocale reports whether locale is one of l's locales, ignoring case.
func (l Language) HasLocale(locale string) bool {
	return slices.ContainsFunc(l.Locales, func(s string) bool { return strings.EqualFold(s, locale) })
}

// Fetcher retrieves catalog data from a live service.
type Fetcher interface {
	Fetch(ctx context.Context) (Data, error)
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithFiles loads from the given JSON files. Both must be set.
func WithFiles(languagesPath, voicesPath string) Option {
	return func(c *Catalog) {
		c.languagesPath = languagesPath
		c.voicesPath = voicesPath
	}
}

// WithFetcher loads from f when no files are configured.
func WithFetcher(f Fetcher) Option {
	return func(c *Catalog) { c.fetcher = f }
}

// WithLoadTimeout bounds a lazy load. Default 15s.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Catalog) { c.timeout = d }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// Catalog is safe for concurrent use.
type Catalog struct {
	languagesPath string
	voicesPath    string
	fetcher       Fetcher
	timeout       time.Duration
	log           *slog.Logger

	sf singleflight.Group

	mu        sync.RWMutex
	languages map[string]Language
	voices    map[string]Voice
	source    string
}

// New returns an unloaded catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{timeout: 15 * time.Second}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// NewStatic returns a catalog preloaded from d. It panics when d has no
// usable languages; tests and the embedded fallback use it.
func NewStatic(d Data) *Catalog {
	langs, err := Build(d)
	if err != nil {
		panic(err)
	}
	c := New()
	c.set(langs, SourceEmbedded)
	return c
}

// Load loads the catalog now unless it is already loaded. Concurrent calls
// share one load. The returned error is informational: on failure the
// embedded fallback is installed.
func (c *Catalog) Load(ctx context.Context) error {
	if c.loaded() {
		return nil
	}
	_, err, _ := c.sf.Do("load", func() (any, error) {
		if c.loaded() {
			return nil, nil
		}
		langs, source, err := c.fetch(ctx)
		if err != nil {
			c.log.Warn("catalog: falling back to embedded metadata", "err", err)
			langs, _ = Build(Fallback())
			source = SourceEmbedded
		}
		c.set(langs, source)
		c.log.Info("catalog: loaded", "source", source, "languages", len(langs))
		return nil, err
	})
	return err
}

// Reload discards the loaded data and loads again.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.languages = nil
	c.voices = nil
	c.mu.Unlock()
	return c.Load(ctx)
}

func (c *Catalog) fetch(ctx context.Context) (map[string]Language, string, error) {
	var (
		data   Data
		source string
		err    error
	)
	switch {
	case c.languagesPath != "" && c.voicesPath != "":
		data, err = LoadFiles(c.languagesPath, c.voicesPath)
		source = SourceFiles
	case c.fetcher != nil:
		data, err = c.fetcher.Fetch(ctx)
		source = SourceRemote
	default:
		data, source = Fallback(), SourceEmbedded
	}
	if err != nil {
		return nil, "", err
	}
	langs, err := Build(data)
	if err != nil {
		return nil, "", err
	}
	return langs, source, nil
}

func (c *Catalog) set(langs map[string]Language, source string) {
	voices := make(map[string]Voice)
	for _, l := range langs {
		for _, v := range l.Voices {
			voices[v.ShortName] = v
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.languages = langs
	c.voices = voices
	c.source = source
}

func (c *Catalog) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.languages != nil
}

// ensure performs the lazy load for read methods.
func (c *Catalog) ensure() {
	if c.loaded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.Load(ctx)
}

// Source reports where the loaded data came from.
func (c *Catalog) Source() string {
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Languages returns all languages sorted by name, ignoring case.
func (c *Catalog) Languages() []Language {
	c.ensure()
	c.mu.RLock()
	out := make([]Language, 0, len(c.languages))
	for _, l := range c.languages {
		out = append(out, l)
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b Language) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return out
}

// Codes returns all language codes sorted.
func (c *Catalog) Codes() []string {
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, 0, len(c.languages))
	for code := range c.languages {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// ResolveLanguage looks up a language by code, ignoring case.
func (c *Catalog) ResolveLanguage(code string) (Language, bool) {
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if l, ok := c.languages[code]; ok {
		return l, true
	}
	for k, l := range c.languages {
		if strings.EqualFold(k, code) {
			return l, true
		}
	}
	return Language{}, false
}

// ResolveVoice looks up a voice by short name.
func (c *Catalog) ResolveVoice(name string) (Voice, bool) {
	if name == "" {
		return Voice{}, false
	}
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.voices[name]
	return v, ok
}

// Voices returns the voices of the language with the given code.
func (c *Catalog) Voices(code string) ([]Voice, error) {
	l, ok := c.ResolveLanguage(code)
	if !ok {
		return nil, fmt.Errorf("%w: language %q", ErrNotFound, code)
	}
	return slices.Clone(l.Voices), nil
}

// DefaultVoice returns the first voice of the language.
func (c *Catalog) DefaultVoice(code string) (string, bool) {
	l, ok := c.ResolveLanguage(code)
	if !ok || len(l.Voices) == 0 {
		return "", false
	}
	return l.Voices[0].ShortName, true
}

// suggestThreshold is the minimum Jaro-Winkler similarity for a suggestion.
const suggestThreshold = 0.75

// Suggest returns up to three language codes whose code or name resembles
// query, best first.
func (c *Catalog) Suggest(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	type scored struct {
		code  string
		score float64
	}
	var hits []scored
	for _, l := range c.Languages() {
		score := max(
			matchr.JaroWinkler(query, strings.ToLower(l.Code), false),
			matchr.JaroWinkler(query, strings.ToLower(l.Name), false),
			matchr.JaroWinkler(query, strings.ToLower(l.NativeName), false),
		)
		if score >= suggestThreshold {
			hits = append(hits, scored{l.Code, score})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return cmp.Compare(b.score, a.score) })
	out := make([]string, 0, 3)
	for _, h := range hits {
		if len(out) == 3 {
			break
		}
		out = append(out, h.code)
	}
	return out
}

// DescribeLanguage renders a one-line summary of l.
func DescribeLanguage(l Language) string {
	return fmt.Sprintf("%s (%s) - code %s, locales %s, %d voice(s), default locale %s",
		l.Name, l.NativeName, l.Code, strings.Join(l.Locales, ", "), len(l.Voices), l.DefaultLocale)
}

// DescribeVoice renders a one-line summary of v.
func DescribeVoice(v Voice) string {
	return fmt.Sprintf("%s (%s) - %s, %s", v.Name, v.ShortName, v.Gender, v.Locale)
}
