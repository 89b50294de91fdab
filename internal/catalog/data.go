package catalog

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "embed"
)

// File names written by [Populate] and read by [LoadFiles].
const (
	LanguagesFile = "azure_languages.json"
	VoicesFile    = "azure_voices.json"
)

// LanguageInfo is one translator language as stored on disk.
type LanguageInfo struct {
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
}

// VoiceInfo is one synthesis voice as stored on disk.
type VoiceInfo struct {
	ShortName string `json:"short_name"`
	Gender    string `json:"gender"`
	Name      string `json:"name"`
}

// Data is the raw catalog: translator languages keyed by code and voices
// grouped by locale.
type Data struct {
	Languages map[string]LanguageInfo `json:"languages"`
	Voices    map[string][]VoiceInfo  `json:"voices"`
}

//go:embed fallback.json
var fallbackJSON []byte

// Fallback returns the embedded six-language catalog.
func Fallback() Data {
	var d Data
	if err := json.Unmarshal(fallbackJSON, &d); err != nil {
		panic("catalog: embedded fallback is invalid: " + err.Error())
	}
	return d
}

// LoadFiles reads a languages file ({code: {name, nativeName}}) and a voices
// file ({locale: [{short_name, gender, name}]}).
func LoadFiles(languagesPath, voicesPath string) (Data, error) {
	var d Data
	if err := readJSON(languagesPath, &d.Languages); err != nil {
		return Data{}, err
	}
	if err := readJSON(voicesPath, &d.Voices); err != nil {
		return Data{}, err
	}
	return d, nil
}

func readJSON(path string, into any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return nil
}

// WriteFiles writes d into dir as [LanguagesFile] and [VoicesFile]. Voices
// are sorted by short name within each locale.
func WriteFiles(dir string, d Data) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: create %s: %w", dir, err)
	}
	voices := make(map[string][]VoiceInfo, len(d.Voices))
	for locale, vs := range d.Voices {
		vs = slices.Clone(vs)
		slices.SortFunc(vs, func(a, b VoiceInfo) int {
			return cmp.Compare(strings.ToLower(a.ShortName), strings.ToLower(b.ShortName))
		})
		voices[locale] = vs
	}
	return errors.Join(
		writeJSON(filepath.Join(dir, LanguagesFile), d.Languages),
		writeJSON(filepath.Join(dir, VoicesFile), voices),
	)
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("catalog: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}

// baseOf returns the lower-cased part of a code or locale before the first
// '-', e.g. "zh" for "zh-Hans".
func baseOf(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return strings.ToLower(base)
}

// Build joins languages with the voices whose locale shares their base
// language. Languages without voices are dropped. It fails when nothing
// overlaps.
func Build(d Data) (map[string]Language, error) {
	out := make(map[string]Language, len(d.Languages))
	for code, info := range d.Languages {
		base := baseOf(code)
		var voices []Voice
		for locale, vs := range d.Voices {
			if baseOf(locale) != base {
				continue
			}
			for _, v := range vs {
				if v.ShortName == "" {
					continue
				}
				voices = append(voices, Voice{
					ShortName: v.ShortName,
					Locale:    locale,
					Gender:    cmp.Or(v.Gender, "Unknown"),
					Name:      cmp.Or(v.Name, v.ShortName),
				})
			}
		}
		if len(voices) == 0 {
			continue
		}
		slices.SortFunc(voices, func(a, b Voice) int {
			return cmp.Compare(strings.ToLower(a.ShortName), strings.ToLower(b.ShortName))
		})

		var locales []string
		for _, v := range voices {
			if !slices.Contains(locales, v.Locale) {
				locales = append(locales, v.Locale)
			}
		}
		slices.Sort(locales)

		name := cmp.Or(info.Name, code)
		out[code] = Language{
			Code:          code,
			Name:          name,
			NativeName:    cmp.Or(info.NativeName, name),
			Locales:       locales,
			DefaultLocale: locales[0],
			Voices:        voices,
		}
	}
	if len(out) == 0 {
		return nil, errors.New("catalog: no overlap between translator languages and voices")
	}
	return out, nil
}
