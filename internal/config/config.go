// Package config loads homescout settings from defaults, a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/homescout/internal/agent"
	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/llm"
)

// EnvPrefix prefixes every environment override, e.g. HOMESCOUT_DEVICE_ENDPOINT.
const EnvPrefix = "HOMESCOUT"

// Config is the complete application configuration.
type Config struct {
	Debug   bool `mapstructure:"debug"`
	Quiet   bool `mapstructure:"quiet"`
	LogJSON bool `mapstructure:"log_json"`

	Device        device.Config       `mapstructure:"device"`
	Scrape        listing.Config      `mapstructure:"scrape"`
	Flow          FlowConfig          `mapstructure:"flow"`
	LLM           llm.ChainConfig     `mapstructure:"llm"`
	Agent         agent.Config        `mapstructure:"agent"`
	Server        ServerConfig        `mapstructure:"server"`
	Conversations ConversationsConfig `mapstructure:"conversations"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Store         StoreConfig         `mapstructure:"store"`
}

// FlowConfig selects the search flow.
type FlowConfig struct {
	// File replaces the built-in flow when set.
	File string `mapstructure:"file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	TurnTimeout       time.Duration `mapstructure:"turn_timeout" validate:"min=0"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// ConversationsConfig configures the in-memory conversation store.
type ConversationsConfig struct {
	// TTL expires idle conversations; 0 keeps them for the process lifetime.
	TTL           time.Duration `mapstructure:"ttl" validate:"min=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"min=0"`
}

// QueueConfig configures the SQS search worker.
type QueueConfig struct {
	URL               string        `mapstructure:"url" validate:"omitempty,url"`
	ResultURL         string        `mapstructure:"result_url" validate:"omitempty,url"`
	Region            string        `mapstructure:"region"`
	Endpoint          string        `mapstructure:"endpoint" validate:"omitempty,url"`
	WaitTime          time.Duration `mapstructure:"wait_time" validate:"min=0,max=20s"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"min=0"`
	MaxMessages       int           `mapstructure:"max_messages" validate:"min=1,max=10"`
}

// StoreConfig configures the search history database.
type StoreConfig struct {
	// DSN is a PostgreSQL connection string. History is disabled when empty.
	DSN string `mapstructure:"dsn"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: device.DefaultConfig(),
		Scrape: listing.DefaultConfig(),
		LLM: llm.ChainConfig{
			Order:    llm.DefaultFallbackOrder,
			Defaults: llm.DefaultProviderConfig(),
		},
		Agent: agent.DefaultConfig(),
		Server: ServerConfig{
			Addr:              ":8000",
			TurnTimeout:       10 * time.Minute,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Conversations: ConversationsConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Queue: QueueConfig{
			WaitTime:          20 * time.Second,
			VisibilityTimeout: 15 * time.Minute,
			MaxMessages:       1,
		},
	}
}

// SetDefaults registers every default on v so that each key can be
// overridden from the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("debug", d.Debug)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("log_json", d.LogJSON)

	v.SetDefault("device.backend", d.Device.Backend)
	v.SetDefault("device.endpoint", d.Device.Endpoint)
	v.SetDefault("device.platform", d.Device.Platform)
	v.SetDefault("device.automation", d.Device.Automation)
	v.SetDefault("device.device_name", d.Device.DeviceName)
	v.SetDefault("device.start_url", d.Device.StartURL)
	v.SetDefault("device.headless", d.Device.Headless)
	v.SetDefault("device.emulate_device", d.Device.EmulateDevice)
	v.SetDefault("device.wait_timeout", d.Device.WaitTimeout)
	v.SetDefault("device.poll_interval", d.Device.PollInterval)
	v.SetDefault("device.screenshot_dir", d.Device.ScreenshotDir)
	v.SetDefault("device.swipe.start_x", d.Device.Swipe.StartX)
	v.SetDefault("device.swipe.start_y", d.Device.Swipe.StartY)
	v.SetDefault("device.swipe.end_x", d.Device.Swipe.EndX)
	v.SetDefault("device.swipe.end_y", d.Device.Swipe.EndY)
	v.SetDefault("device.swipe.duration", d.Device.Swipe.Duration)

	v.SetDefault("scrape.slots", d.Scrape.Slots)
	v.SetDefault("scrape.attempt_multiplier", d.Scrape.AttemptMultiplier)
	v.SetDefault("scrape.max_idle_scrolls", d.Scrape.MaxIdleScrolls)
	v.SetDefault("scrape.phone_policy", d.Scrape.PhonePolicy)
	v.SetDefault("scrape.min_phone_digits", d.Scrape.MinPhoneDigits)
	v.SetDefault("scrape.list_timeout", d.Scrape.ListTimeout)
	v.SetDefault("scrape.poll_interval", d.Scrape.PollInterval)
	v.SetDefault("scrape.open_pause", d.Scrape.OpenPause)
	v.SetDefault("scrape.reveal_pause", d.Scrape.RevealPause)
	v.SetDefault("scrape.back_pause", d.Scrape.BackPause)
	v.SetDefault("scrape.scroll_pause", d.Scrape.ScrollPause)

	v.SetDefault("flow.file", d.Flow.File)

	v.SetDefault("llm.provider", d.LLM.Preferred)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.fallback_order", d.LLM.Order)
	v.SetDefault("llm.defaults.max_retries", d.LLM.Defaults.MaxRetries)
	v.SetDefault("llm.defaults.timeout", d.LLM.Defaults.Timeout)

	v.SetDefault("agent.instructions", d.Agent.Instructions)
	v.SetDefault("agent.max_tool_rounds", d.Agent.MaxToolRounds)
	v.SetDefault("agent.max_tokens", d.Agent.MaxTokens)
	v.SetDefault("agent.temperature", d.Agent.Temperature)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.turn_timeout", d.Server.TurnTimeout)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("conversations.ttl", d.Conversations.TTL)
	v.SetDefault("conversations.sweep_interval", d.Conversations.SweepInterval)

	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.result_url", d.Queue.ResultURL)
	v.SetDefault("queue.region", d.Queue.Region)
	v.SetDefault("queue.endpoint", d.Queue.Endpoint)
	v.SetDefault("queue.wait_time", d.Queue.WaitTime)
	v.SetDefault("queue.visibility_timeout", d.Queue.VisibilityTimeout)
	v.SetDefault("queue.max_messages", d.Queue.MaxMessages)

	v.SetDefault("store.dsn", d.Store.DSN)
}

// Setup prepares v: defaults, environment overrides, a .env file in the
// working directory and the config file. cfgFile selects an explicit file;
// otherwise .homescout.yaml is looked up in the home and working
// directories. A missing default config file is not an error.
func Setup(v *viper.Viper, cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".homescout")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fieldPath turns "Config.Scrape.AttemptMultiplier" into
// "Scrape.AttemptMultiplier".
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}
