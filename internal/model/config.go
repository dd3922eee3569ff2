package model

import "time"

// Config is the complete patientsim configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Patients   PatientsConfig   `yaml:"patients" mapstructure:"patients"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Replay     ReplayConfig     `yaml:"replay" mapstructure:"replay"`
}

// ServerConfig configures the HTTP delivery endpoint
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	H2C          bool          `yaml:"h2c" mapstructure:"h2c"` // cleartext HTTP/2
}

// ClassifierConfig configures the external NLU service
type ClassifierConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // luis, openai, ollama
	Endpoint   string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // provider default when empty
	AppID      string        `yaml:"app_id" mapstructure:"app_id"`
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	SpellCheck bool          `yaml:"spell_check" mapstructure:"spell_check"`
	Model      string        `yaml:"model,omitempty" mapstructure:"model"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// CacheTTL keeps predictions for repeated queries; zero disables the cache
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// Per-conversation rate limit on classifier calls
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// StoreConfig selects the conversation store
type StoreConfig struct {
	Driver   string        `yaml:"driver" mapstructure:"driver"` // memory, disk, postgres, sqlite, mongo
	DSN      string        `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Database string        `yaml:"database,omitempty" mapstructure:"database"` // mongo only
	Dir      string        `yaml:"dir" mapstructure:"dir"`                     // disk only
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// PatientsConfig points at the case catalog
type PatientsConfig struct {
	Dir      string        `yaml:"dir" mapstructure:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// ReplayConfig configures scripted transcript replay
type ReplayConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Classifier: ClassifierConfig{
			Provider:          "luis",
			SpellCheck:        true,
			Model:             "gpt-4o-mini",
			Timeout:           10 * time.Second,
			CacheTTL:          24 * time.Hour,
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Store: StoreConfig{
			Driver: "memory",
			Dir:    ".patientsim/conversations",
			TTL:    72 * time.Hour,
		},
		Patients: PatientsConfig{
			Dir:      "patients",
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Replay: ReplayConfig{
			Concurrency: 4,
		},
	}
}
