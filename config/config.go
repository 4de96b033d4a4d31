package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// Provider is one transcription backend. An empty APIKey leaves it out of the chain.
type Provider struct {
	URL          string        `yaml:"url" mapstructure:"url"`
	APIKey       string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model        string        `yaml:"model" mapstructure:"model"`
	Speakers     int           `yaml:"speakers" mapstructure:"speakers"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout,omitempty" mapstructure:"poll_timeout"`
}

type Providers struct {
	ElevenLabs Provider `yaml:"elevenlabs" mapstructure:"elevenlabs"`
	Deepgram   Provider `yaml:"deepgram" mapstructure:"deepgram"`
	AssemblyAI Provider `yaml:"assemblyai" mapstructure:"assemblyai"`
}

type Transcription struct {
	Order     []string  `yaml:"order" mapstructure:"order"`
	Providers Providers `yaml:"providers" mapstructure:"providers"`
}

type Services struct {
	Reasoning Service `yaml:"reasoning" mapstructure:"reasoning"`
}

type Audio struct {
	SampleRate  int           `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels    int           `yaml:"channels" mapstructure:"channels"`
	Format      string        `yaml:"format" mapstructure:"format"`
	MaxDuration time.Duration `yaml:"max_duration" mapstructure:"max_duration"`
	Bars        int           `yaml:"bars" mapstructure:"bars"`
	Tick        time.Duration `yaml:"tick" mapstructure:"tick"`
	ChunkSize   int           `yaml:"chunk_size" mapstructure:"chunk_size"`
}

type Relationship struct {
	Praise     int `yaml:"praise" mapstructure:"praise"`
	Reflect    int `yaml:"reflect" mapstructure:"reflect"`
	Describe   int `yaml:"describe" mapstructure:"describe"`
	Imitate    int `yaml:"imitate" mapstructure:"imitate"`
	AvoidMax   int `yaml:"avoid_max" mapstructure:"avoid_max"`
	AvoidDecay int `yaml:"avoid_decay" mapstructure:"avoid_decay"`
}

type Discipline struct {
	Commands      int     `yaml:"commands" mapstructure:"commands"`
	Praise        int     `yaml:"praise" mapstructure:"praise"`
	Effectiveness float64 `yaml:"effectiveness" mapstructure:"effectiveness"`
}

type Mastery struct {
	Relationship Relationship `yaml:"relationship" mapstructure:"relationship"`
	Discipline   Discipline   `yaml:"discipline" mapstructure:"discipline"`
}

type Root struct {
	Pipeline struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
		LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Audio         Audio         `yaml:"audio" mapstructure:"audio"`
	Transcription Transcription `yaml:"transcription" mapstructure:"transcription"`
	Services      Services      `yaml:"services" mapstructure:"services"`
	Mastery       Mastery       `yaml:"mastery" mapstructure:"mastery"`
	Server        struct {
		Addr string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"server" mapstructure:"server"`
	Paths struct {
		DB      string `yaml:"db" mapstructure:"db"`
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

// env vars that override file values
var envBindings = map[string]string{
	"transcription.providers.elevenlabs.api_key": "ELEVENLABS_API_KEY",
	"transcription.providers.deepgram.api_key":   "DEEPGRAM_API_KEY",
	"transcription.providers.assemblyai.api_key": "ASSEMBLYAI_API_KEY",
	"services.reasoning.url":                     "REASONING_URL",
	"pipeline.log_level":                         "LOG_LEVEL",
	"paths.db":                                   "SESSION_DB",
}

func Default() *Root {
	var c Root
	c.Pipeline.Name = "session-pipeline"
	c.Pipeline.Version = "1"
	c.Pipeline.LogLvl = "info"
	c.Audio = Audio{
		SampleRate:  16000,
		Channels:    1,
		Format:      "audio/webm",
		MaxDuration: 300 * time.Second,
		Bars:        40,
		Tick:        16 * time.Millisecond,
		ChunkSize:   32 * 1024,
	}
	c.Transcription = Transcription{
		Order: []string{"elevenlabs", "deepgram", "assemblyai"},
		Providers: Providers{
			ElevenLabs: Provider{URL: "https://api.elevenlabs.io", Model: "scribe_v1", Speakers: 2},
			Deepgram:   Provider{URL: "https://api.deepgram.com", Model: "nova-2", Speakers: 2},
			AssemblyAI: Provider{
				URL:          "https://api.assemblyai.com",
				Speakers:     2,
				PollInterval: 3 * time.Second,
				PollTimeout:  5 * time.Minute,
			},
		},
	}
	c.Services.Reasoning.URL = "http://localhost:3001/api"
	c.Mastery = Mastery{
		Relationship: Relationship{Praise: 10, Reflect: 10, Describe: 10, Imitate: 10, AvoidMax: 3, AvoidDecay: 20},
		Discipline:   Discipline{Commands: 5, Praise: 5, Effectiveness: 75},
	}
	c.Server.Addr = ":8080"
	c.Paths.DB = filepath.Join("data", "sessions.db")
	c.Paths.Outputs = "outputs"
	return &c
}

// Load resolves the config file (explicit path, then the CONFIG_ENV candidates) over the
// defaults and applies env overrides. A missing file is not an error.
func Load(path string) (*Root, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path == "" {
		path = findConfig()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfig() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		filepath.Join("shared", "config.yaml"),
	}
	for _, p := range guess {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// WriteDefault writes the default configuration (without credentials) to path.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return err
	}
	return enc.Close()
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
