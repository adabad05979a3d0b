// Package config loads mediastitch settings with viper: defaults, an
// optional YAML file, MEDIASTITCH_ environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/utils"
)

const (
	defaultConnections       = 4
	defaultWorkers           = 1
	defaultTimeout           = 3 * time.Minute
	defaultKeepAliveTimeout  = 90 * time.Second
	defaultRangeProbeTimeout = 8 * time.Second
	defaultCRF               = 23
	maxConnections           = 64
)

type Config struct {
	Connections        int               `mapstructure:"connections"`
	Workers            int               `mapstructure:"workers"`
	Timeout            time.Duration     `mapstructure:"timeout"`
	KeepAliveTimeout   time.Duration     `mapstructure:"keep_alive_timeout"`
	UserAgent          string            `mapstructure:"user_agent"`
	Proxy              string            `mapstructure:"proxy"`
	Headers            map[string]string `mapstructure:"headers"`
	RangeProbeTimeout  time.Duration     `mapstructure:"range_probe_timeout"`
	ChunkSize          int64             `mapstructure:"chunk_size"`
	OutputDir          string            `mapstructure:"output_dir"`
	PartialOnInterrupt bool              `mapstructure:"partial_on_interrupt"`
	Debug              bool              `mapstructure:"debug"`
	FFmpeg             FFmpegConfig      `mapstructure:"ffmpeg"`
	Sink               SinkConfig        `mapstructure:"sink"`
}

type FFmpegConfig struct {
	Path         string `mapstructure:"path"` // empty = look up in PATH
	CRF          int    `mapstructure:"crf"`
	AudioBitrate string `mapstructure:"audio_bitrate"`
	Preset       string `mapstructure:"preset"`
}

type SinkConfig struct {
	Kind    string `mapstructure:"kind"` // local, s3
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Profile string `mapstructure:"profile"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"connections": "connections",
	"workers":     "workers",
	"timeout":     "timeout",
	"user-agent":  "user_agent",
	"proxy":       "proxy",
	"debug":       "debug",
	"sink":        "sink.kind",
	"bucket":      "sink.bucket",
	"partial":     "partial_on_interrupt",
}

// Load reads configuration. configPath may be empty, in which case
// mediastitch.yaml is looked up in the working directory and
// $HOME/.mediastitch. Only flags the user actually set override the file.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mediastitch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mediastitch")
	}

	v.SetEnvPrefix("MEDIASTITCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("connections", defaultConnections)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("keep_alive_timeout", defaultKeepAliveTimeout)
	v.SetDefault("user_agent", utils.ToolUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("range_probe_timeout", defaultRangeProbeTimeout)
	v.SetDefault("chunk_size", utils.DefaultChunkSize)
	v.SetDefault("output_dir", ".")
	v.SetDefault("partial_on_interrupt", true)
	v.SetDefault("debug", false)

	v.SetDefault("ffmpeg.path", "")
	v.SetDefault("ffmpeg.crf", defaultCRF)
	v.SetDefault("ffmpeg.audio_bitrate", "128k")
	v.SetDefault("ffmpeg.preset", "veryfast")

	v.SetDefault("sink.kind", "local")
	v.SetDefault("sink.bucket", "")
	v.SetDefault("sink.prefix", "")
	v.SetDefault("sink.profile", "")
}

func (c *Config) Validate() error {
	if c.Connections < 1 || c.Connections > maxConnections {
		return fmt.Errorf("connections must be between 1 and %d", maxConnections)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		return fmt.Errorf("ffmpeg.crf must be between 0 and 51")
	}
	switch c.Sink.Kind {
	case "local":
	case "s3":
		if c.Sink.Bucket == "" {
			return fmt.Errorf("sink.bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("sink.kind must be one of: local, s3")
	}
	return nil
}

// HTTPClientConfig derives client settings. Credentials embedded in the
// proxy URL are split out, and a user agent of "randomize" picks a
// browser agent.
func (c *Config) HTTPClientConfig(extraHeaders map[string]string) utils.HTTPClientConfig {
	headers := make(map[string]string, len(c.Headers)+len(extraHeaders))
	for k, v := range c.Headers {
		headers[k] = v
	}
	for k, v := range extraHeaders {
		headers[k] = v
	}
	ua := c.UserAgent
	if ua == "randomize" {
		ua = utils.GetRandomUserAgent()
	}
	out := utils.HTTPClientConfig{
		Timeout:        c.Timeout,
		KATimeout:      c.KeepAliveTimeout,
		ProxyURL:       c.Proxy,
		UserAgent:      ua,
		Headers:        headers,
		HighThreadMode: c.Connections > 8,
	}
	if parsed, err := url.Parse(c.Proxy); err == nil && c.Proxy != "" && parsed.User != nil {
		out.ProxyUsername = parsed.User.Username()
		out.ProxyPassword, _ = parsed.User.Password()
		parsed.User = nil
		out.ProxyURL = parsed.String()
	}
	return out
}

func (c *Config) RemuxConfig(workDir string) remux.Config {
	return remux.Config{
		Path:         c.FFmpeg.Path,
		CRF:          c.FFmpeg.CRF,
		AudioBitrate: c.FFmpeg.AudioBitrate,
		Preset:       c.FFmpeg.Preset,
		WorkDir:      workDir,
	}
}
