// ABOUTME: Viper-backed configuration for the studio, collaborators and monitor server
// ABOUTME: Supplies defaults, resolves user directories and validates loaded values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/pkg/engine"
)

const (
	appName    = "castvox"
	configName = "castvox"
	envPrefix  = "castvox"
)

// ErrInvalid is returned by Validate
var ErrInvalid = errors.New("invalid configuration")

// Models names the Gemini models per task
type Models struct {
	TTS   string
	Text  string
	Video string
}

// Audio holds engine settings
type Audio struct {
	SampleRate       int
	Channels         int
	LeadIn           time.Duration
	GainTimeConstant float64
}

// Server holds monitor server settings
type Server struct {
	Name string
	Port int
	MDNS bool
}

// Config is the resolved configuration
type Config struct {
	APIKey            string
	Models            Models
	RequestsPerMinute int
	Audio             Audio
	VisualizerFPS     int
	DataDir           string
	CacheDir          string
	LogFile           string
	Server            Server
}

// Default returns the built-in configuration
func Default() Config {
	scope := gap.NewScope(gap.User, appName)

	dataDir, err := scope.DataPath("")
	if err != nil {
		dataDir = filepath.Join(os.TempDir(), appName, "data")
	}
	cacheDir, err := scope.CacheDir()
	if err != nil {
		cacheDir = filepath.Join(os.TempDir(), appName, "cache")
	}
	logFile, err := scope.LogPath(appName + ".log")
	if err != nil {
		logFile = filepath.Join(os.TempDir(), appName+".log")
	}

	return Config{
		Models: Models{
			TTS:   "gemini-2.5-flash-preview-tts",
			Text:  "gemini-3-flash-preview",
			Video: "veo-3.1-fast-generate-preview",
		},
		RequestsPerMinute: collab.DefaultRequestsPerMinute,
		Audio: Audio{
			SampleRate:       24000,
			Channels:         2,
			LeadIn:           100 * time.Millisecond,
			GainTimeConstant: 0.1,
		},
		VisualizerFPS: 60,
		DataDir:       dataDir,
		CacheDir:      cacheDir,
		LogFile:       logFile,
		Server: Server{
			Name: appName,
			Port: 8928,
			MDNS: true,
		},
	}
}

// SetDefaults registers every key with its default so env lookups work
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("api_key", "")
	v.SetDefault("models.tts", d.Models.TTS)
	v.SetDefault("models.text", d.Models.Text)
	v.SetDefault("models.video", d.Models.Video)
	v.SetDefault("requests_per_minute", d.RequestsPerMinute)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.lead_in", d.Audio.LeadIn)
	v.SetDefault("audio.gain_time_constant", d.Audio.GainTimeConstant)
	v.SetDefault("visualizer.fps", d.VisualizerFPS)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mdns", d.Server.MDNS)
}

// Init points v at the config file (or the default search path) and the
// CASTVOX_ environment. A missing default file is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", "CASTVOX_API_KEY", "GEMINI_API_KEY"); err != nil {
		return err
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		for _, dir := range SearchDirs() {
			v.AddConfigPath(dir)
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// SearchDirs lists config directories, most specific first
func SearchDirs() []string {
	var dirs []string
	if c := os.Getenv("CASTVOX_CONFIG_HOME"); c != "" {
		dirs = append(dirs, c)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append(dirs, filepath.Join(c, appName))
	}
	scoped, err := gap.NewScope(gap.User, appName).ConfigDirs()
	if err == nil {
		dirs = append(dirs, scoped...)
	}
	return dirs
}

// DefaultFile returns where a new config file is created
func DefaultFile() string {
	dirs := SearchDirs()
	if len(dirs) == 0 {
		return configName + ".yaml"
	}
	return filepath.Join(dirs[0], configName+".yaml")
}

// Load reads the configuration from v and validates it
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	cfg.APIKey = v.GetString("api_key")
	cfg.Models.TTS = v.GetString("models.tts")
	cfg.Models.Text = v.GetString("models.text")
	cfg.Models.Video = v.GetString("models.video")
	cfg.RequestsPerMinute = v.GetInt("requests_per_minute")
	cfg.Audio.SampleRate = v.GetInt("audio.sample_rate")
	cfg.Audio.Channels = v.GetInt("audio.channels")
	cfg.Audio.LeadIn = v.GetDuration("audio.lead_in")
	cfg.Audio.GainTimeConstant = v.GetFloat64("audio.gain_time_constant")
	cfg.VisualizerFPS = v.GetInt("visualizer.fps")
	cfg.Server.Name = v.GetString("server.name")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.MDNS = v.GetBool("server.mdns")

	var err error
	if cfg.DataDir, err = homedir.Expand(v.GetString("data_dir")); err != nil {
		return cfg, fmt.Errorf("%w: data_dir: %w", ErrInvalid, err)
	}
	if cfg.CacheDir, err = homedir.Expand(v.GetString("cache_dir")); err != nil {
		return cfg, fmt.Errorf("%w: cache_dir: %w", ErrInvalid, err)
	}
	if cfg.LogFile, err = homedir.Expand(v.GetString("log_file")); err != nil {
		return cfg, fmt.Errorf("%w: log_file: %w", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every value is usable
func (c Config) Validate() error {
	switch {
	case c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000:
		return fmt.Errorf("%w: audio.sample_rate %d outside [8000, 192000]", ErrInvalid, c.Audio.SampleRate)
	case c.Audio.Channels != 1 && c.Audio.Channels != 2:
		return fmt.Errorf("%w: audio.channels must be 1 or 2, got %d", ErrInvalid, c.Audio.Channels)
	case c.Audio.LeadIn < 0:
		return fmt.Errorf("%w: audio.lead_in must not be negative", ErrInvalid)
	case c.Audio.GainTimeConstant <= 0:
		return fmt.Errorf("%w: audio.gain_time_constant must be positive", ErrInvalid)
	case c.VisualizerFPS < 1 || c.VisualizerFPS > 240:
		return fmt.Errorf("%w: visualizer.fps %d outside [1, 240]", ErrInvalid, c.VisualizerFPS)
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d outside [1, 65535]", ErrInvalid, c.Server.Port)
	case c.RequestsPerMinute < 1:
		return fmt.Errorf("%w: requests_per_minute must be positive", ErrInvalid)
	case c.Models.TTS == "" || c.Models.Text == "" || c.Models.Video == "":
		return fmt.Errorf("%w: model names must not be empty", ErrInvalid)
	}
	return nil
}

// Gemini returns the collaborator configuration
func (c Config) Gemini() collab.GeminiConfig {
	return collab.GeminiConfig{
		APIKey:            c.APIKey,
		TTSModel:          c.Models.TTS,
		TextModel:         c.Models.Text,
		VideoModel:        c.Models.Video,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// Engine returns the engine settings; callers add output and callbacks
func (c Config) Engine() engine.Config {
	return engine.Config{
		SampleRate:   c.Audio.SampleRate,
		Channels:     c.Audio.Channels,
		LeadIn:       c.Audio.LeadIn,
		TimeConstant: c.Audio.GainTimeConstant,
	}
}

// DefaultYAML is written by `castvox config` when no file exists yet
const DefaultYAML = `# Gemini API key; GEMINI_API_KEY is read as well
# api_key: ""

models:
  tts: "gemini-2.5-flash-preview-tts"
  text: "gemini-3-flash-preview"
  video: "veo-3.1-fast-generate-preview"

# Collaborator request budget
requests_per_minute: 10

audio:
  sample_rate: 24000
  channels: 2
  lead_in: "100ms"
  gain_time_constant: 0.1

visualizer:
  fps: 60

# data_dir: "~/.local/share/castvox"
# cache_dir: "~/.cache/castvox"
# log_file: "~/.local/state/castvox/castvox.log"

server:
  name: "castvox"
  port: 8928
  mdns: true
`
