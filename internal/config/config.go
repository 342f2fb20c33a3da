package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port        string
	Env         string
	StoreDriver string

	MongoURI string
	DBName   string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CurrentCacheTTL time.Duration

	GeocoderBaseURL    string
	GeocoderUserAgent  string
	GeocoderCountry    string
	GeocoderRatePerSec float64
	GeocoderTimeout    time.Duration
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the process environment without touching .env files.
func FromEnv() Config {
	return Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("APP_ENV", "development"),
		StoreDriver: getEnvOrDefault("STORE_DRIVER", StoreMongo),

		MongoURI: getEnvOrDefault("MONGO_URI", ""),
		DBName:   getEnvOrDefault("DB_NAME", "addressbook"),

		JWTSecret:  getEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:   getDurationEnv("TOKEN_TTL", 90*24*60, time.Minute),
		BcryptCost: getIntEnv("BCRYPT_COST", 12),

		RedisAddr:       getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:   getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		CurrentCacheTTL: getDurationEnv("CURRENT_ADDRESS_CACHE_TTL", 300, time.Second),

		GeocoderBaseURL:    getEnvOrDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:  getEnvOrDefault("GEOCODER_USER_AGENT", "addressbook/1.0"),
		GeocoderCountry:    getEnvOrDefault("GEOCODER_COUNTRY", "India"),
		GeocoderRatePerSec: getFloatEnv("GEOCODER_RATE_PER_SEC", 1),
		GeocoderTimeout:    getDurationEnv("GEOCODER_TIMEOUT", 5, time.Second),
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI must be set when STORE_DRIVER=mongo")
		}
	case StoreMemory:
	default:
		return errors.New("config: STORE_DRIVER must be mongo or memory")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
