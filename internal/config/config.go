package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type Config struct {
	Port string

	DB              DBConfig
	ProgressBackend string // postgres, sqlite or mongo
	SQLitePath      string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	RedisTTL        time.Duration
	AMQPURL         string

	JWTSecret string
	BankDir   string

	TestSize          int
	TestSlots         int
	TrainingSetSize   int
	FreeTestSlots     int
	FreeTrainingSets  int
	ReferralsToUnlock int
	PassPercent       int
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "dmv_user"),
			Password: getEnv("DB_PASSWORD", "dmv_password"),
			Name:     getEnv("DB_NAME", "dmv_prep"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		ProgressBackend: getEnv("PROGRESS_BACKEND", "postgres"),
		SQLitePath:      getEnv("SQLITE_PATH", "dmv_progress.db"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "dmv_prep"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisTTL:        getDuration("REDIS_TTL", 10*time.Minute),
		AMQPURL:         getEnv("AMQP_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "dmv-prep-dev-signing-key"),
		BankDir:   getEnv("BANK_DIR", "data/questions"),

		TestSize:          getInt("TEST_SIZE", 50),
		TestSlots:         getInt("TEST_SLOTS", 4),
		TrainingSetSize:   getInt("TRAINING_SET_SIZE", 25),
		FreeTestSlots:     getInt("FREE_TEST_SLOTS", 3),
		FreeTrainingSets:  getInt("FREE_TRAINING_SETS", 2),
		ReferralsToUnlock: getInt("REFERRALS_TO_UNLOCK", 3),
		PassPercent:       getInt("PASS_PERCENT", 80),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: config: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: config: %s=%q is not a valid duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}
