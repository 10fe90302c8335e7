// Package config provides the configuration schema, loader, and provider
// registry for the Gideon voice pipeline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Gideon process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration is a time.Duration that decodes from YAML strings such as "800ms"
// or "3s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for Gideon.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Responder ResponderConfig `yaml:"responder"`
}

// ServerConfig holds network and logging settings for the HTTP surface
// serving /healthz, /readyz, and /metrics.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig is the immutable pipeline tuning block. It is read once at
// start-up; nothing mutates it afterwards.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of capture channels. Mono (1) in practice.
	Channels int `yaml:"channels"`

	// ListenTimeout bounds the wait for speech onset before a capture gives
	// up with no speech.
	ListenTimeout Duration `yaml:"listen_timeout"`

	// PhraseTimeout bounds the length of a single captured utterance.
	PhraseTimeout Duration `yaml:"phrase_timeout"`

	// PauseThreshold is the silence span that ends an utterance.
	PauseThreshold Duration `yaml:"pause_threshold"`

	// AmbientDuration is how long calibration samples ambient noise.
	AmbientDuration Duration `yaml:"ambient_noise_duration"`

	// EnergyMin and EnergyMax clamp the derived energy threshold.
	EnergyMin float64 `yaml:"energy_min"`
	EnergyMax float64 `yaml:"energy_max"`

	// InitialThreshold is the energy threshold used before the first
	// successful calibration.
	InitialThreshold float64 `yaml:"initial_threshold"`

	// RecalibrationInterval is how stale a calibration may get before the
	// loop recalibrates.
	RecalibrationInterval Duration `yaml:"recalibration_interval"`

	// RecognizeTimeout bounds a single transcription attempt per language.
	RecognizeTimeout Duration `yaml:"recognize_timeout"`

	// Language is the primary BCP-47 recognition language.
	Language string `yaml:"language"`

	// FallbackLanguages are tried in order after Language.
	FallbackLanguages []string `yaml:"fallback_languages"`

	// WakePhrases are the phrases scored against every transcript.
	WakePhrases []string `yaml:"wake_phrases"`

	// WakeThreshold is the fuzzy-match acceptance similarity in (0, 1].
	WakeThreshold float64 `yaml:"wake_threshold"`

	// RetryDelay is the base backoff delay after a failed cycle.
	RetryDelay Duration `yaml:"retry_delay"`

	// BackoffFactor scales the delay growth per consecutive failure.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// BackoffCap bounds the grown backoff delay.
	BackoffCap Duration `yaml:"backoff_cap"`

	// ExtendedBreak is the fixed sleep taken at MaxRetries consecutive
	// failures, after which the failure counter resets.
	ExtendedBreak Duration `yaml:"extended_break"`

	// MaxRetries is the consecutive-failure count that triggers the
	// extended break.
	MaxRetries int `yaml:"max_retries"`

	// QueueCapacity bounds the command queue; the oldest command is dropped
	// when full.
	QueueCapacity int `yaml:"queue_capacity"`

	// InputDevice optionally pins capture to a device by name substring,
	// resolved and applied to the microphone source at startup. Empty
	// selects the best-scoring input device. Takes precedence over a
	// device_index set in the mic provider options.
	InputDevice string `yaml:"input_device"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline port. Each entry selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	// STT is the primary transcription provider.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary's breaker is open or
	// it fails with a provider fault.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	TTS ProviderEntry `yaml:"tts"`
	Mic ProviderEntry `yaml:"mic"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram",
	// "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// ResponderConfig configures the canned reply generator used when no
// external response generator is wired in.
type ResponderConfig struct {
	// Seed seeds phrase selection so replies are reproducible. Zero uses
	// the process start time.
	Seed int64 `yaml:"seed"`

	// Greetings, General, and Errors override the built-in phrase lists
	// when non-empty.
	Greetings []string `yaml:"greetings"`
	General   []string `yaml:"general"`
	Errors    []string `yaml:"errors"`
}

// ApplyDefaults fills zero-valued Audio fields with the pipeline defaults.
func (c *Config) ApplyDefaults() {
	a := &c.Audio
	if a.SampleRate <= 0 {
		a.SampleRate = 16000
	}
	if a.Channels <= 0 {
		a.Channels = 1
	}
	if a.ListenTimeout <= 0 {
		a.ListenTimeout = Duration(3 * time.Second)
	}
	if a.PhraseTimeout <= 0 {
		a.PhraseTimeout = Duration(8 * time.Second)
	}
	if a.PauseThreshold <= 0 {
		a.PauseThreshold = Duration(800 * time.Millisecond)
	}
	if a.AmbientDuration <= 0 {
		a.AmbientDuration = Duration(300 * time.Millisecond)
	}
	if a.EnergyMin <= 0 {
		a.EnergyMin = 100
	}
	if a.EnergyMax <= 0 {
		a.EnergyMax = 1000
	}
	if a.InitialThreshold <= 0 {
		a.InitialThreshold = 300
	}
	if a.RecalibrationInterval <= 0 {
		a.RecalibrationInterval = Duration(30 * time.Second)
	}
	if a.RecognizeTimeout <= 0 {
		a.RecognizeTimeout = Duration(10 * time.Second)
	}
	if a.Language == "" {
		a.Language = "en-US"
	}
	if len(a.FallbackLanguages) == 0 {
		a.FallbackLanguages = []string{"fr-FR", "en-GB"}
	}
	if len(a.WakePhrases) == 0 {
		a.WakePhrases = []string{"gideon", "hey gideon"}
	}
	if a.WakeThreshold <= 0 {
		a.WakeThreshold = 0.75
	}
	if a.RetryDelay <= 0 {
		a.RetryDelay = Duration(time.Second)
	}
	if a.BackoffFactor <= 0 {
		a.BackoffFactor = 0.5
	}
	if a.BackoffCap <= 0 {
		a.BackoffCap = Duration(5 * time.Second)
	}
	if a.ExtendedBreak <= 0 {
		a.ExtendedBreak = Duration(5 * time.Second)
	}
	if a.MaxRetries <= 0 {
		a.MaxRetries = 3
	}
	if a.QueueCapacity <= 0 {
		a.QueueCapacity = 64
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
}

// Languages returns the primary language followed by the fallbacks.
func (a AudioConfig) Languages() []string {
	langs := make([]string, 0, 1+len(a.FallbackLanguages))
	langs = append(langs, a.Language)
	return append(langs, a.FallbackLanguages...)
}
