package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// PlatformFeePercent Percentage of the base rent charged on top of every
// rent payment. PLATFORM_FEE_PERCENT overrides the default of 5.
func PlatformFeePercent() decimal.Decimal {
	raw := os.Getenv("PLATFORM_FEE_PERCENT")
	if raw == "" {
		return decimal.NewFromInt(5)
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil || pct.IsNegative() {
		return decimal.NewFromInt(5)
	}
	return pct
}

func GatewayTimeout() time.Duration {
	return durationFromEnv("GATEWAY_TIMEOUT_SECONDS", time.Second, 15*time.Second)
}

func PaymentVerifierInterval() time.Duration {
	return durationFromEnv("PAYMENT_VERIFIER_INTERVAL_SECONDS", time.Second, 15*time.Minute)
}

// PaymentVerifierMinAge Transactions younger than this are left alone so the
// verifier does not race a renter still on the checkout page.
func PaymentVerifierMinAge() time.Duration {
	return durationFromEnv("PAYMENT_VERIFIER_MIN_AGE_SECONDS", time.Second, 5*time.Minute)
}

func BookingSweeperInterval() time.Duration {
	return durationFromEnv("BOOKING_SWEEPER_INTERVAL_SECONDS", time.Second, time.Hour)
}

func BookingExpiryThreshold() time.Duration {
	return durationFromEnv("BOOKING_EXPIRY_HOURS", time.Hour, 48*time.Hour)
}

func durationFromEnv(key string, unit time.Duration, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * unit
}
