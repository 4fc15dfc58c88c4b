package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when Twilio or OpenAI
// credentials are absent.
var ErrMissingCredentials = errors.New("missing Twilio and/or OpenAI credentials")

const (
	DefaultRealtimeURL   = "wss://api.openai.com/v1/realtime"
	DefaultRealtimeModel = "gpt-4o-realtime-preview-2024-10-01"
	DefaultVoice         = "alloy"

	// The realtime API accepts temperatures in this range only.
	MinTemperature = 0.6
	MaxTemperature = 1.2

	DefaultSystemMessage = "You are a helpful and friendly voice assistant speaking with a caller over the phone. " +
		"Keep answers short and conversational, ask one question at a time, and say so plainly when you do not know something."
	DefaultGreetingPrompt = "Greet the caller warmly, introduce yourself as the virtual assistant, " +
		"and ask who you have the pleasure of speaking with. Keep it brief."
)

// ServerConfig holds configuration for the callrelay server.
type ServerConfig struct {
	ConfigFile     string        `yaml:"-"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	Port           int           `yaml:"port"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	APIKey         string        `yaml:"api_key"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RedisAddr      string        `yaml:"redis_addr"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`

	// Domain is the externally reachable host name Twilio uses to reach the
	// webhooks and the media stream endpoint. Scheme and trailing slashes
	// are stripped.
	Domain string `yaml:"domain"`

	OpenAIAPIKey       string        `yaml:"openai_api_key"`
	RealtimeURL        string        `yaml:"realtime_url"`
	RealtimeModel      string        `yaml:"realtime_model"`
	Voice              string        `yaml:"voice"`
	Temperature        float64       `yaml:"temperature"`
	SystemMessage      string        `yaml:"system_message"`
	GreetingPrompt     string        `yaml:"greeting_prompt"`
	TranscriptionModel string        `yaml:"transcription_model"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	DialTimeout        time.Duration `yaml:"realtime_dial_timeout"`
	PingInterval       time.Duration `yaml:"realtime_ping_interval"`

	TwilioAccountSID      string        `yaml:"twilio_account_sid"`
	TwilioAuthToken       string        `yaml:"twilio_auth_token"`
	FromNumber            string        `yaml:"from_number"`
	VerifyTwilioSignature bool          `yaml:"verify_twilio_signature"`
	CallTaskLimit         int           `yaml:"call_task_limit"`
	CallRecordTTL         time.Duration `yaml:"call_record_ttl"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == 0 {
		c.Port = 6060
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 5 * time.Minute
	}
	if c.RealtimeURL == "" {
		c.RealtimeURL = DefaultRealtimeURL
	}
	if c.RealtimeModel == "" {
		c.RealtimeModel = DefaultRealtimeModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.SystemMessage == "" {
		c.SystemMessage = DefaultSystemMessage
	}
	if c.GreetingPrompt == "" {
		c.GreetingPrompt = DefaultGreetingPrompt
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = "whisper-1"
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.CallTaskLimit == 0 {
		c.CallTaskLimit = 32
	}
	if c.CallRecordTTL == 0 {
		c.CallRecordTTL = 24 * time.Hour
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("callrelay.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := GetEnv("LOG_FILE", ""); v != "" {
		c.LogFile = v
	}
	if v := GetEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := GetEnv("METRICS_PORT", ""); v != "" {
		if strings.Contains(v, ":") {
			c.MetricsAddr = v
		} else {
			c.MetricsAddr = ":" + v
		}
	} else if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if v := GetEnv("API_KEY", ""); v != "" {
		c.APIKey = v
	}
	if v := GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
	if v := GetEnv("DOMAIN", ""); v != "" {
		c.Domain = v
	}
	if v := GetEnv("OPENAI_API_KEY", ""); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := GetEnv("OPENAI_REALTIME_URL", ""); v != "" {
		c.RealtimeURL = v
	}
	if v := GetEnv("OPENAI_REALTIME_MODEL", ""); v != "" {
		c.RealtimeModel = v
	}
	if v := GetEnv("VOICE", ""); v != "" {
		c.Voice = v
	}
	if v := GetEnv("TEMPERATURE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
	if v := GetEnv("SYSTEM_MESSAGE", ""); v != "" {
		c.SystemMessage = v
	}
	if v := GetEnv("GREETING_PROMPT", ""); v != "" {
		c.GreetingPrompt = v
	}
	if v := GetEnv("SETTLE_DELAY", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SettleDelay = d
		}
	}
	if v := GetEnv("REALTIME_DIAL_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DialTimeout = d
		}
	}
	if v := GetEnv("REALTIME_PING_INTERVAL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PingInterval = d
		}
	}
	if v := GetEnv("TWILIO_ACCOUNT_SID", ""); v != "" {
		c.TwilioAccountSID = v
	}
	if v := GetEnv("TWILIO_AUTH_TOKEN", ""); v != "" {
		c.TwilioAuthToken = v
	}
	if v := GetEnv("PHONE_NUMBER_FROM", ""); v != "" {
		c.FromNumber = v
	}
	if v := GetEnv("VERIFY_TWILIO_SIGNATURE", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.VerifyTwilioSignature = b
		}
	}
	if v := GetEnv("CALL_TASK_LIMIT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CallTaskLimit = n
		}
	}
	if v := GetEnv("CALL_RECORD_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CallRecordTTL = d
		}
	}
}

// BindFlagsFromCurrent binds command line flags using the current config values as defaults.
func (c *ServerConfig) BindFlagsFromCurrent() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.StringVar(&c.LogFile, "log-file", c.LogFile, "also write JSON logs to this rotated file")
	flag.IntVar(&c.Port, "port", c.Port, "HTTP listen port for webhooks and the media stream")
	flag.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port; defaults to the value of --port")
	flag.StringVar(&c.APIKey, "api-key", c.APIKey, "bearer key required for /outbound-call, /api and /mcp; leave empty to disable auth")
	flag.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for call records")
	flag.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to wait for live calls on shutdown (-1 to wait indefinitely, 0 to exit immediately)")
	flag.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	flag.StringVar(&c.Domain, "domain", c.Domain, "externally reachable domain used in webhook and stream URLs")
	flag.StringVar(&c.RealtimeURL, "realtime-url", c.RealtimeURL, "OpenAI realtime websocket endpoint")
	flag.StringVar(&c.RealtimeModel, "realtime-model", c.RealtimeModel, "OpenAI realtime model")
	flag.StringVar(&c.Voice, "voice", c.Voice, "assistant voice")
	flag.Float64Var(&c.Temperature, "temperature", c.Temperature, "response temperature")
	flag.DurationVar(&c.SettleDelay, "settle-delay", c.SettleDelay, "wait between session.update and the greeting")
	flag.DurationVar(&c.DialTimeout, "realtime-dial-timeout", c.DialTimeout, "limit on the realtime websocket handshake")
	flag.DurationVar(&c.PingInterval, "realtime-ping-interval", c.PingInterval, "keepalive ping interval on the realtime socket")
	flag.StringVar(&c.FromNumber, "from", c.FromNumber, "caller ID used for outbound calls")
	flag.BoolVar(&c.VerifyTwilioSignature, "verify-twilio-signature", c.VerifyTwilioSignature, "reject webhooks without a valid X-Twilio-Signature")
	flag.IntVar(&c.CallTaskLimit, "call-task-limit", c.CallTaskLimit, "maximum concurrent outbound call requests")
	flag.DurationVar(&c.CallRecordTTL, "call-record-ttl", c.CallRecordTTL, "how long call records are retained")
}

// LoadFile populates the config from a YAML file.
func (c *ServerConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// Normalize strips scheme and trailing slashes from Domain.
func (c *ServerConfig) Normalize() {
	c.Domain = NormalizeDomain(c.Domain)
}

// Validate reports configuration that prevents the server from working.
func (c *ServerConfig) Validate() error {
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.FromNumber == "" || c.OpenAIAPIKey == "" {
		return ErrMissingCredentials
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", c.Temperature, MinTemperature, MaxTemperature)
	}
	return nil
}

// StreamURL is the media stream websocket URL announced in TwiML.
func (c *ServerConfig) StreamURL() string {
	if c.Domain == "" {
		return "wss://localhost/media-stream"
	}
	return "wss://" + c.Domain + "/media-stream"
}

// WebhookURL returns the public https URL for path.
func (c *ServerConfig) WebhookURL(path string) string {
	return "https://" + c.Domain + path
}

// NormalizeDomain removes any URL scheme and trailing slashes.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(raw)
	if i := strings.Index(d, "//"); i >= 0 && !strings.Contains(d[:i], "/") {
		d = d[i+2:]
	}
	return strings.TrimRight(d, "/")
}

// GetEnv returns the value of key or def when unset.
func GetEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
