package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Options holds the full service configuration. Fields carry humacli tags so
// the server binary binds them to flags and environment variables; the
// consumer binary fills them via FromEnv.
type Options struct {
	Port    int    `default:"8080"                  help:"Port to listen on"                             short:"p"`
	BaseURL string `help:"Absolute external origin used to build short URLs" name:"base-url" validate:"required,url"`

	DatabaseURL string `help:"PostgreSQL connection string" name:"database-url" validate:"required"`
	RedisAddr   string `default:"localhost:6379"            help:"Redis server address"   name:"redis-addr"`
	RedisTTL    int    `default:"3600"                      help:"Redirect cache TTL in seconds" name:"redis-ttl" validate:"min=1"`

	EventBus      string `default:"redis"          enum:"redis,kafka" help:"Event bus transport" name:"event-bus" validate:"oneof=redis kafka"`
	KafkaBrokers  string `default:"localhost:9092" help:"Comma-separated Kafka broker list" name:"kafka-brokers"`
	HitsTopic     string `default:"url.hits"       help:"Topic hit events are published to" name:"hits-topic"`
	ConsumerGroup string `default:"url-analytics"  help:"Consumer group for the analytics consumer" name:"consumer-group"`

	CodeLength          int `default:"7"    help:"Length of generated short codes" name:"code-length" validate:"min=4,max=16"`
	MaxURLLength        int `default:"2048" help:"Maximum accepted URL length"     name:"max-url-length" validate:"min=1"`
	AliasMinLength      int `default:"3"    help:"Minimum custom alias length"     name:"alias-min-length" validate:"min=1"`
	AliasMaxLength      int `default:"50"   help:"Maximum custom alias length"     name:"alias-max-length" validate:"min=1"`
	RateLimitWindow     int `default:"60"   help:"Rate limit window in seconds"    name:"rate-limit-window" validate:"min=1"`
	RateLimitMax        int `default:"30"   help:"Requests allowed per window"     name:"rate-limit-max" validate:"min=1"`
	ConsumerBatchSize   int `default:"100"  help:"Events applied per analytics flush" name:"consumer-batch-size" validate:"min=1"`
	ConsumerMaxInFlight int `default:"5"    help:"Concurrent analytics flushes"       name:"consumer-max-in-flight" validate:"min=1"`

	EnableURLScanning bool   `default:"false"     help:"Probe the reputation service before shortening" name:"enable-url-scanning"`
	AdminAPIKey       string `help:"Shared secret for admin routes" name:"admin-api-key" validate:"required"`
	APIKeyHeader      string `default:"X-API-Key" help:"Header carrying the admin key" name:"api-key-header"`

	LogLevel  string `default:"info"    enum:"debug,info,warn,error" help:"Log level" name:"log-level"`
	LogFormat string `default:"console" enum:"console,json"          help:"Log output format" name:"log-format"`
}

// CacheTTL returns the redirect cache TTL as a duration.
func (o *Options) CacheTTL() time.Duration {
	return time.Duration(o.RedisTTL) * time.Second
}

// RateLimitTTL returns the rate limit window as a duration.
func (o *Options) RateLimitTTL() time.Duration {
	return time.Duration(o.RateLimitWindow) * time.Second
}

// Validate checks required keys and ranges, returning a precise error for the
// first violation so startup failures point at the offending option.
func (o *Options) Validate() error {
	v := validator.New()

	if err := v.Struct(o); err != nil {
		var errs validator.ValidationErrors
		if ok := asValidationErrors(err, &errs); ok && len(errs) > 0 {
			fe := errs[0]

			return fmt.Errorf("config: option %q fails %q (value %v)", fe.StructField(), fe.Tag(), fe.Value())
		}

		return fmt.Errorf("config: %w", err)
	}

	if o.AliasMinLength > o.AliasMaxLength {
		return fmt.Errorf("config: alias-min-length %d exceeds alias-max-length %d", o.AliasMinLength, o.AliasMaxLength)
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}

	return ok
}

// LoadDotenv loads a .env file when one exists. Missing files are not an
// error; a present but unreadable file is.
func LoadDotenv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}

	return godotenv.Load()
}

// FillFromEnv populates options left at their zero value from the
// environment, so flags win over env vars and env vars over nothing. Boolean
// and defaulted numeric options are bound by the flag layer and left alone.
func (o *Options) FillFromEnv() {
	env := FromEnv()

	if o.BaseURL == "" {
		o.BaseURL = env.BaseURL
	}

	if o.DatabaseURL == "" {
		o.DatabaseURL = env.DatabaseURL
	}

	if o.AdminAPIKey == "" {
		o.AdminAPIKey = env.AdminAPIKey
	}
}

// FromEnv builds Options from environment variables. Used by the consumer
// binary, which does not go through humacli flag binding. Unknown keys are
// ignored.
func FromEnv() *Options {
	return &Options{
		Port:                envInt("PORT", 8080),
		BaseURL:             envString("BASE_URL", ""),
		DatabaseURL:         envString("DATABASE_URL", ""),
		RedisAddr:           envString("REDIS_ADDR", "localhost:6379"),
		RedisTTL:            envInt("REDIS_TTL", 3600),
		EventBus:            envString("EVENT_BUS", "redis"),
		KafkaBrokers:        envString("KAFKA_BROKERS", "localhost:9092"),
		HitsTopic:           envString("KAFKA_TOPIC_HITS", "url.hits"),
		ConsumerGroup:       envString("CONSUMER_GROUP", "url-analytics"),
		CodeLength:          envInt("DEFAULT_CODE_LENGTH", 7),
		MaxURLLength:        envInt("MAX_URL_LENGTH", 2048),
		AliasMinLength:      envInt("CUSTOM_ALIAS_MIN_LENGTH", 3),
		AliasMaxLength:      envInt("CUSTOM_ALIAS_MAX_LENGTH", 50),
		RateLimitWindow:     envInt("RATE_LIMIT_TTL", 60),
		RateLimitMax:        envInt("RATE_LIMIT_LIMIT", 30),
		ConsumerBatchSize:   envInt("CONSUMER_BATCH_SIZE", 100),
		ConsumerMaxInFlight: envInt("CONSUMER_MAX_IN_FLIGHT", 5),
		EnableURLScanning:   envBool("ENABLE_URL_SCANNING", false),
		AdminAPIKey:         envString("ADMIN_API_KEY", ""),
		APIKeyHeader:        envString("API_KEY_HEADER", "X-API-Key"),
		LogLevel:            envString("LOG_LEVEL", "info"),
		LogFormat:           envString("LOG_FORMAT", "console"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}
