package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	AppName    string
	ListenIP   string
	ListenPort int
	BaseURL    string

	// SecretKey signs session cookies, CSRF tokens and password-reset
	// tokens. There is no fallback: startup fails without it.
	SecretKey    string
	CookieSecure bool

	// AdminEmail promotes the matching account to the admin role at
	// startup. Empty means no promotion happens.
	AdminEmail string

	DBPath string

	UploadDir     string
	MaxUploadSize int64

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	MailSender string

	ResetTokenMaxAge int // seconds
}

var AppConfig Config

var ErrMissingSecretKey = errors.New("SECRET_KEY is not set")

// Load reads the configuration from the environment. Callers are expected
// to have loaded a .env file first (godotenv in main).
func Load() error {
	AppConfig = Config{
		AppName:          getEnv("APP_NAME", "DevOps Notes"),
		ListenIP:         getEnv("LISTEN_IP", "0.0.0.0"),
		ListenPort:       getEnvInt("LISTEN_PORT", 8080),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		SecretKey:        os.Getenv("SECRET_KEY"),
		CookieSecure:     getEnvBool("COOKIE_SECURE", false),
		AdminEmail:       getEnv("ADMIN_EMAIL", ""),
		DBPath:           getEnv("DB_PATH", "./devnotes.db"),
		UploadDir:        getEnv("UPLOAD_DIR", "static/uploads"),
		MaxUploadSize:    int64(getEnvInt("MAX_UPLOAD_SIZE", 2<<20)),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPass:         getEnv("SMTP_PASSWORD", ""),
		MailSender:       getEnv("MAIL_SENDER", "noreply@devnotes.local"),
		ResetTokenMaxAge: getEnvInt("RESET_TOKEN_MAX_AGE", 3600),
	}

	if AppConfig.SecretKey == "" {
		return ErrMissingSecretKey
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
