/**
 * @description
 * This package handles the configuration management for the platform. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized and straightforward way to
 * manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the platform. These values
// are loaded from environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenTTLHours int    `mapstructure:"TOKEN_TTL_HOURS"`

	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	PaymentGateway     string `mapstructure:"PAYMENT_GATEWAY"`
	MidtransServerKey  string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool   `mapstructure:"MIDTRANS_PRODUCTION"`
	FakeGatewaySecret  string `mapstructure:"FAKE_GATEWAY_SECRET"`

	VAPIDPublicKey  string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `mapstructure:"VAPID_SUBSCRIBER"`

	BankAccountName   string `mapstructure:"BANK_ACCOUNT_NAME"`
	BankAccountNumber string `mapstructure:"BANK_ACCOUNT_NUMBER"`

	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	MaxUploadBytes  int64  `mapstructure:"MAX_UPLOAD_BYTES"`
	ReminderCron    string `mapstructure:"REMINDER_CRON"`
	ReminderWindowH int    `mapstructure:"REMINDER_WINDOW_HOURS"`

	RateLimitPublicPerMinute  int `mapstructure:"RATE_LIMIT_PUBLIC_PER_MINUTE"`
	RateLimitAuthPerMinute    int `mapstructure:"RATE_LIMIT_AUTH_PER_MINUTE"`
	RateLimitWebhookPerMinute int `mapstructure:"RATE_LIMIT_WEBHOOK_PER_MINUTE"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TOKEN_TTL_HOURS", 72)
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	viper.SetDefault("PAYMENT_GATEWAY", "fake")
	viper.SetDefault("FAKE_GATEWAY_SECRET", "dev-webhook-secret")
	viper.SetDefault("BANK_ACCOUNT_NAME", "Stowarzyszenie Kenaz")
	viper.SetDefault("BANK_ACCOUNT_NUMBER", "PL00 0000 0000 0000 0000 0000 0000")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	viper.SetDefault("REMINDER_CRON", "0 * * * *")
	viper.SetDefault("REMINDER_WINDOW_HOURS", 24)
	viper.SetDefault("RATE_LIMIT_PUBLIC_PER_MINUTE", 60)
	viper.SetDefault("RATE_LIMIT_AUTH_PER_MINUTE", 120)
	viper.SetDefault("RATE_LIMIT_WEBHOOK_PER_MINUTE", 120)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_HOURS")
	_ = viper.BindEnv("PUBLIC_BASE_URL")
	_ = viper.BindEnv("PAYMENT_GATEWAY")
	_ = viper.BindEnv("MIDTRANS_SERVER_KEY")
	_ = viper.BindEnv("MIDTRANS_PRODUCTION")
	_ = viper.BindEnv("FAKE_GATEWAY_SECRET")
	_ = viper.BindEnv("VAPID_PUBLIC_KEY")
	_ = viper.BindEnv("VAPID_PRIVATE_KEY")
	_ = viper.BindEnv("VAPID_SUBSCRIBER")
	_ = viper.BindEnv("BANK_ACCOUNT_NAME")
	_ = viper.BindEnv("BANK_ACCOUNT_NUMBER")
	_ = viper.BindEnv("UPLOAD_DIR")
	_ = viper.BindEnv("MAX_UPLOAD_BYTES")
	_ = viper.BindEnv("REMINDER_CRON")
	_ = viper.BindEnv("REMINDER_WINDOW_HOURS")
	_ = viper.BindEnv("RATE_LIMIT_PUBLIC_PER_MINUTE")
	_ = viper.BindEnv("RATE_LIMIT_AUTH_PER_MINUTE")
	_ = viper.BindEnv("RATE_LIMIT_WEBHOOK_PER_MINUTE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	if config.JWTSecret == "" {
		log.Printf("level=warn component=config msg=\"JWT_SECRET is not set; using an insecure development secret\"")
		config.JWTSecret = "kenaz-dev-secret-change-me"
	}
	if config.TokenTTLHours <= 0 {
		config.TokenTTLHours = 72
	}

	config.PaymentGateway = strings.ToLower(strings.TrimSpace(config.PaymentGateway))
	switch config.PaymentGateway {
	case "fake", "snap":
	default:
		log.Printf("level=warn component=config msg=\"unknown PAYMENT_GATEWAY; falling back to fake\" value=%q", config.PaymentGateway)
		config.PaymentGateway = "fake"
	}
	if config.PaymentGateway == "snap" && strings.TrimSpace(config.MidtransServerKey) == "" {
		log.Printf("level=warn component=config msg=\"PAYMENT_GATEWAY=snap but MIDTRANS_SERVER_KEY is empty\"")
	}

	config.PublicBaseURL = strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/")
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.ReminderWindowH <= 0 {
		config.ReminderWindowH = 24
	}

	return
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (c Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
