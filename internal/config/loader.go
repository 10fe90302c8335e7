package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram", "openai", "whisper", "noop"},
	"tts": {"coqui", "elevenlabs", "noop"},
	"mic": {"portaudio"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
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
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio
	a := cfg.Audio
	if a.Channels != 1 && a.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", a.Channels))
	}
	if a.EnergyMin >= a.EnergyMax {
		errs = append(errs, fmt.Errorf("audio.energy_min %.0f must be below audio.energy_max %.0f", a.EnergyMin, a.EnergyMax))
	}
	if a.InitialThreshold < a.EnergyMin || a.InitialThreshold > a.EnergyMax {
		errs = append(errs, fmt.Errorf("audio.initial_threshold %.0f is outside [%.0f, %.0f]", a.InitialThreshold, a.EnergyMin, a.EnergyMax))
	}
	if a.WakeThreshold <= 0 || a.WakeThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.wake_threshold %.2f is out of range (0, 1]", a.WakeThreshold))
	}
	if a.PauseThreshold.Std() >= a.PhraseTimeout.Std() {
		errs = append(errs, fmt.Errorf("audio.pause_threshold %s must be below audio.phrase_timeout %s", a.PauseThreshold.Std(), a.PhraseTimeout.Std()))
	}
	for i, phrase := range a.WakePhrases {
		if phrase == "" {
			errs = append(errs, fmt.Errorf("audio.wake_phrases[%d] is empty", i))
		}
	}
	for i, lang := range a.FallbackLanguages {
		if lang == "" {
			errs = append(errs, fmt.Errorf("audio.fallback_languages[%d] is empty", i))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, entry := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", entry.Name)
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("mic", cfg.Providers.Mic.Name)

	// Provider availability warnings
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; recognition will report unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; replies will be logged, not spoken")
	}
	if cfg.Providers.Mic.Name == "" {
		slog.Warn("no microphone provider configured; the pipeline will run degraded")
	}
	for i, entry := range cfg.Providers.STTFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
