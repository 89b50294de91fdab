package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"audio":     {"microphone", "wavfile", "discord"},
	"playback":  {"speaker", "wavdir", "discord"},
	"vad":       {"energy", "silero"},
	"stt":       {"azure", "whisper", "whisper-native", "deepgram"},
	"translate": {"azure", "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"azure", "elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. An empty path means [DefaultPath].
//
// Before parsing, a .env file next to the config and one in the working
// directory are loaded into the process environment (existing variables
// win), so ${VAR} references in the YAML can be filled from either.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	LoadDotEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads the .env file beside configPath and the one in the
// working directory, skipping files that do not exist.
func LoadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	seen := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config: failed to load env file", "path", abs, "err", err)
		}
	}
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references,
// applies defaults and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Pipeline defaults
	if cfg.Pipeline.SilenceSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_seconds %.2f must not be negative", cfg.Pipeline.SilenceSeconds))
	}
	if cfg.Pipeline.Target == "" {
		errs = append(errs, errors.New("pipeline.target is required"))
	}

	// Segmentation
	seg := cfg.Segmentation
	if seg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("segmentation.sample_rate %d must be positive", seg.SampleRate))
	}
	if seg.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("segmentation.frame_size %d must be positive", seg.FrameSize))
	}
	if seg.Threshold <= 0 || seg.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("segmentation.threshold %.2f is out of range (0, 1)", seg.Threshold))
	}
	if seg.MinChunkSeconds < 0 {
		errs = append(errs, fmt.Errorf("segmentation.min_chunk_seconds %.2f must not be negative", seg.MinChunkSeconds))
	}

	// Catalog
	if (cfg.Catalog.LanguagesFile == "") != (cfg.Catalog.VoicesFile == "") {
		errs = append(errs, errors.New("catalog.languages_file and catalog.voices_file must be set together"))
	}

	// Providers
	entries := []struct {
		kind      string
		entry     ProviderEntry
		fallbacks bool
	}{
		{"audio", cfg.Providers.Audio, false},
		{"playback", cfg.Providers.Playback, false},
		{"vad", cfg.Providers.VAD, false},
		{"stt", cfg.Providers.STT, true},
		{"translate", cfg.Providers.Translate, true},
		{"tts", cfg.Providers.TTS, true},
	}
	for _, e := range entries {
		prefix := "providers." + e.kind
		if e.entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(e.kind, e.entry.Name)
		if len(e.entry.Fallbacks) > 0 && !e.fallbacks {
			errs = append(errs, fmt.Errorf("%s.fallbacks is not supported for %s", prefix, e.kind))
		}
		for i, fb := range e.entry.Fallbacks {
			if fb.Name == "" {
				errs = append(errs, fmt.Errorf("%s.fallbacks[%d].name is required", prefix, i))
				continue
			}
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("%s.fallbacks[%d] must not declare nested fallbacks", prefix, i))
			}
			validateProviderName(e.kind, fb.Name)
		}
		if e.entry.Name == "discord" {
			for _, key := range []string{"token", "guild_id", "channel_id"} {
				if e.entry.OptString(key) == "" {
					errs = append(errs, fmt.Errorf("%s.options.%s is required for discord", prefix, key))
				}
			}
		}
	}

	if cfg.Providers.Audio.Name == "wavfile" && cfg.Providers.Audio.OptString("path") == "" {
		errs = append(errs, errors.New("providers.audio.options.path is required for wavfile"))
	}
	if cfg.Providers.VAD.Name == "silero" && cfg.Providers.VAD.OptString("model_path") == "" {
		errs = append(errs, errors.New("providers.vad.options.model_path is required for silero"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
