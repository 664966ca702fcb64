package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

const sandboxBaseURL = "https://sandbox.safaricom.co.ke"

// Config carries the Safaricom Daraja credentials and server settings for
// the process lifetime. Loaded once at startup and passed in explicitly;
// credential presence is not validated here, a missing value surfaces when
// the first outbound call fails.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	Port           string
	BaseURL        string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	return Config{
		ConsumerKey:    os.Getenv("CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("CONSUMER_SECRET"),
		ShortCode:      os.Getenv("BUSINESS_SHORTCODE"),
		PassKey:        os.Getenv("PASSKEY"),
		CallbackURL:    os.Getenv("CALLBACK_URL"),
		Port:           getEnv("PORT", "3000"),
		BaseURL:        getEnv("MPESA_BASE_URL", sandboxBaseURL),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
