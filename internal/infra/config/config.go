package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Verification VerificationSettings `mapstructure:"verification"`
	Password     PasswordSettings     `mapstructure:"password"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	SMTP         SMTPSettings         `mapstructure:"smtp"`
	SMS          SMSSettings          `mapstructure:"sms"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	OTPPrefix  string `mapstructure:"otp_prefix"`
	RatePrefix string `mapstructure:"rate_prefix"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// JWTSettings configures session token issuance.
type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// RateLimitSettings configures per-identifier and per-IP throttles.
// OTP sends and resends are two independent, composable policies: the send
// count is capped per rolling window, and resends additionally observe a
// short cool-down between consecutive requests.
type RateLimitSettings struct {
	OTPSendLimit        int           `mapstructure:"otp_send_limit"`
	OTPSendWindow       time.Duration `mapstructure:"otp_send_window"`
	OTPResendCooldown   time.Duration `mapstructure:"otp_resend_cooldown"`
	EmailResendLimit    int           `mapstructure:"email_resend_limit"`
	EmailResendWindow   time.Duration `mapstructure:"email_resend_window"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	WindowDuration      time.Duration `mapstructure:"window_duration"`
}

// VerificationSettings configures token and OTP lifetimes.
type VerificationSettings struct {
	EmailTokenTTL  time.Duration `mapstructure:"email_token_ttl"`
	ResetTokenTTL  time.Duration `mapstructure:"reset_token_ttl"`
	OTPTTL         time.Duration `mapstructure:"otp_ttl"`
	OTPLength      int           `mapstructure:"otp_length"`
	OTPMaxAttempts int           `mapstructure:"otp_max_attempts"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// PasswordSettings configures strength and history policy.
type PasswordSettings struct {
	MinLength         int      `mapstructure:"min_length"`
	MinClasses        int      `mapstructure:"min_classes"`
	MinStrength       string   `mapstructure:"min_strength"`
	HistoryLimit      int      `mapstructure:"history_limit"`
	DisposableDomains []string `mapstructure:"disposable_domains"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SMTPSettings configures the transactional email transport.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// SMSSettings configures the SMS gateway client.
type SMSSettings struct {
	ProviderURL string        `mapstructure:"provider_url"`
	APIKey      string        `mapstructure:"api_key"`
	SenderID    string        `mapstructure:"sender_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IDENTITY")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.otp_prefix",
		"redis.rate_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.access_token_ttl",
		"rate_limit.otp_send_limit",
		"rate_limit.otp_send_window",
		"rate_limit.otp_resend_cooldown",
		"rate_limit.email_resend_limit",
		"rate_limit.email_resend_window",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.window_duration",
		"verification.email_token_ttl",
		"verification.reset_token_ttl",
		"verification.otp_ttl",
		"verification.otp_length",
		"verification.otp_max_attempts",
		"verification.sweep_interval",
		"password.min_length",
		"password.min_classes",
		"password.min_strength",
		"password.history_limit",
		"password.disposable_domains",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"smtp.from_name",
		"sms.provider_url",
		"sms.api_key",
		"sms.sender_id",
		"sms.timeout",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "commerce-platform-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "identity")
	v.SetDefault("postgres.database", "identity")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.otp_prefix", "identity:otp")
	v.SetDefault("redis.rate_prefix", "identity:rate-limit")

	v.SetDefault("kafka.topic_prefix", "identity")

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("rate_limit.otp_send_limit", 3)
	v.SetDefault("rate_limit.otp_send_window", 15*time.Minute)
	v.SetDefault("rate_limit.otp_resend_cooldown", 30*time.Second)
	v.SetDefault("rate_limit.email_resend_limit", 1)
	v.SetDefault("rate_limit.email_resend_window", time.Minute)
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.window_duration", time.Minute)

	v.SetDefault("verification.email_token_ttl", 24*time.Hour)
	v.SetDefault("verification.reset_token_ttl", time.Hour)
	v.SetDefault("verification.otp_ttl", 5*time.Minute)
	v.SetDefault("verification.otp_length", 6)
	v.SetDefault("verification.otp_max_attempts", 3)
	v.SetDefault("verification.sweep_interval", time.Hour)

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.min_classes", 3)
	v.SetDefault("password.min_strength", "good")
	v.SetDefault("password.history_limit", 0)

	v.SetDefault("argon2.memory", 64*1024)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("sms.timeout", 10*time.Second)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
