// Package config loads process settings from an optional .env file, an
// optional config.yaml and CARNET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CARNET"

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sequence SequenceConfig `mapstructure:"sequence"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Photo    PhotoConfig    `mapstructure:"photo"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	// Backend is memory, postgres or sqlite.
	Backend     string `mapstructure:"backend"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

type SequenceConfig struct {
	// Backend is store (the record store's own counter) or redis.
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type BlobConfig struct {
	// Backend is fs or s3.
	Backend       string `mapstructure:"backend"`
	FSDir         string `mapstructure:"fs_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Region      string `mapstructure:"s3_region"`
}

type NotifyConfig struct {
	// Backend is log, smtp or ses.
	Backend   string        `mapstructure:"backend"`
	From      string        `mapstructure:"from"`
	ReplyTo   string        `mapstructure:"reply_to"`
	SMTPHost  string        `mapstructure:"smtp_host"`
	SMTPPort  int           `mapstructure:"smtp_port"`
	SMTPUser  string        `mapstructure:"smtp_user"`
	SMTPPass  string        `mapstructure:"smtp_pass"`
	SMTPTLS   bool          `mapstructure:"smtp_tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SESRegion string        `mapstructure:"ses_region"`
	// ReadyOn is the operation that sends the ready message: mark_ready or confirm_print.
	ReadyOn string `mapstructure:"ready_on"`
	OrgName string `mapstructure:"org_name"`
	FormURL string `mapstructure:"form_url"`
}

type BatchConfig struct {
	NotifyConcurrency int `mapstructure:"notify_concurrency"`
}

type PhotoConfig struct {
	PurgeOnReject  bool `mapstructure:"purge_on_reject"`
	MaxUploadBytes int  `mapstructure:"max_upload_bytes"`
}

type AuthConfig struct {
	// Mode is jwt or dev. Dev trusts X-Debug-Subject and must not be deployed.
	Mode       string        `mapstructure:"mode"`
	DevSubject string        `mapstructure:"dev_subject"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTIssuer  string        `mapstructure:"jwt_issuer"`
	JWTAud     string        `mapstructure:"jwt_audience"`
	ClockSkew  time.Duration `mapstructure:"clock_skew"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "carnet.db")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("sequence.backend", "store")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "")
	v.SetDefault("blob.backend", "fs")
	v.SetDefault("blob.fs_dir", "data/photos")
	v.SetDefault("blob.public_base_url", "http://localhost:8080/photos")
	v.SetDefault("blob.s3_bucket", "")
	v.SetDefault("blob.s3_region", "")
	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.reply_to", "")
	v.SetDefault("notify.smtp_host", "")
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.smtp_user", "")
	v.SetDefault("notify.smtp_pass", "")
	v.SetDefault("notify.smtp_tls", false)
	v.SetDefault("notify.timeout", 15*time.Second)
	v.SetDefault("notify.ses_region", "")
	v.SetDefault("notify.ready_on", "mark_ready")
	v.SetDefault("notify.org_name", "")
	v.SetDefault("notify.form_url", "")
	v.SetDefault("batch.notify_concurrency", 8)
	v.SetDefault("photo.purge_on_reject", false)
	v.SetDefault("photo.max_upload_bytes", 5<<20)
	v.SetDefault("auth.mode", "jwt")
	v.SetDefault("auth.dev_subject", "dev|local")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.jwt_audience", "")
	v.SetDefault("auth.clock_skew", 30*time.Second)
}

// Load reads settings. A missing .env or config file is not an error; an
// explicit configFile that cannot be read is.
func Load(configFile string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects inconsistent settings before any backend is dialled.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.database_url is required for postgres"))
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want memory, postgres or sqlite", c.Storage.Backend))
	}

	switch c.Sequence.Backend {
	case "store":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis sequence"))
		}
	default:
		errs = append(errs, fmt.Errorf("sequence.backend %q: want store or redis", c.Sequence.Backend))
	}

	switch c.Blob.Backend {
	case "fs":
		if c.Blob.FSDir == "" {
			errs = append(errs, errors.New("blob.fs_dir is required for fs"))
		}
	case "s3":
		if c.Blob.S3Bucket == "" {
			errs = append(errs, errors.New("blob.s3_bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.backend %q: want fs or s3", c.Blob.Backend))
	}

	switch c.Notify.Backend {
	case "log":
	case "smtp":
		if c.Notify.SMTPHost == "" || c.Notify.From == "" {
			errs = append(errs, errors.New("notify.smtp_host and notify.from are required for smtp"))
		}
	case "ses":
		if c.Notify.From == "" {
			errs = append(errs, errors.New("notify.from is required for ses"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.backend %q: want log, smtp or ses", c.Notify.Backend))
	}
	switch c.Notify.ReadyOn {
	case "mark_ready", "confirm_print":
	default:
		errs = append(errs, fmt.Errorf("notify.ready_on %q: want mark_ready or confirm_print", c.Notify.ReadyOn))
	}

	switch c.Auth.Mode {
	case "dev":
	case "jwt":
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode %q: want jwt or dev", c.Auth.Mode))
	}

	if c.Batch.NotifyConcurrency < 1 {
		errs = append(errs, errors.New("batch.notify_concurrency must be positive"))
	}
	if c.Photo.MaxUploadBytes < 1 {
		errs = append(errs, errors.New("photo.max_upload_bytes must be positive"))
	}
	return errors.Join(errs...)
}
