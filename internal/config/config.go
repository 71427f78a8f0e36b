package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"boda-service/internal/pkg/jwt"

	"github.com/shopspring/decimal"
)

type PayoutConfig struct {
	DailyHour     int
	DailyMinute   int
	CleanupDay    time.Weekday
	CleanupHour   int
	CleanupMinute int
	RetentionDays int
	PaymentDelay  time.Duration
	Timezone      string
}

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	InitiatorName  string
}

type AppConfig struct {
	// Server
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string

	// Admin console
	JWT               jwt.Config
	AdminEmail        string
	AdminPasswordHash string

	// Earnings
	CommissionRate decimal.Decimal

	// Payouts
	Payout PayoutConfig
	Mpesa  MpesaConfig
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	dailyHour, dailyMinute := parseClock(getEnv("DAILY_PAYOUT_TIME", "23:00"), 23, 0)
	cleanupHour, cleanupMinute := parseClock(getEnv("WEEKLY_CLEANUP_TIME", "02:00"), 2, 0)

	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASS", ""),

		JWT: jwt.Config{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   "boda-service",
			Audience: "boda-admin",
			TTL:      24 * time.Hour,
		},
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@rocketriders.co.ke"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		CommissionRate: getEnvDecimal("COMMISSION_RATE", "0.20"),

		Payout: PayoutConfig{
			DailyHour:     dailyHour,
			DailyMinute:   dailyMinute,
			CleanupDay:    parseWeekday(getEnv("WEEKLY_CLEANUP_DAY", "Sunday")),
			CleanupHour:   cleanupHour,
			CleanupMinute: cleanupMinute,
			RetentionDays: getEnvInt("PAYMENT_RETENTION_DAYS", 30),
			PaymentDelay:  time.Duration(getEnvInt("PAYMENT_DELAY_MS", 1500)) * time.Millisecond,
			Timezone:      getEnv("PAYOUT_TIMEZONE", "Africa/Nairobi"),
		},
		Mpesa: MpesaConfig{
			BaseURL:        getEnv("MPESA_BASE_URL", "https://api.safaricom.co.ke"),
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:      getEnv("MPESA_SHORTCODE", ""),
			InitiatorName:  getEnv("MPESA_INITIATOR", ""),
		},
	}
}

// --- Helper functions ---

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

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}

// parseClock parses "HH:MM" wall-clock strings.
func parseClock(v string, defHour, defMinute int) (int, int) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return defHour, defMinute
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return defHour, defMinute
	}
	return h, m
}

func parseWeekday(v string) time.Weekday {
	switch strings.ToLower(v) {
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}
