package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects every tunable the process reads from the environment.
// Constructors take it explicitly so tests can build isolated instances.
type Config struct {
	DBPath  string
	DevMode bool

	ListenAddr string
	JWTSecret  string

	QueuePath         string
	DrainInterval     time.Duration
	DrainLimit        int
	MaxReplayAttempts int

	ProbeURL      string
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
}

// Load reads .env (if present) and assembles the config from env vars with
// defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	return Config{
		DBPath:  getEnv("FLEET_DB_PATH", "./fleet.db"),
		DevMode: getBool("FLEET_DEV_MODE", false),

		ListenAddr: getEnv("FLEET_LISTEN_ADDR", "127.0.0.1:8080"),
		JWTSecret:  getEnv("JWT_SECRET", "supersecret"),

		QueuePath:         getEnv("FLEET_QUEUE_PATH", "./offline-queue.json"),
		DrainInterval:     getDuration("FLEET_DRAIN_INTERVAL", 30*time.Second),
		DrainLimit:        getInt("FLEET_DRAIN_LIMIT", 20),
		MaxReplayAttempts: getInt("FLEET_MAX_REPLAY_ATTEMPTS", 5),

		ProbeURL:      getEnv("FLEET_PROBE_URL", "https://clients3.google.com/generate_204"),
		ProbeTimeout:  getDuration("FLEET_PROBE_TIMEOUT", 5*time.Second),
		ProbeInterval: getDuration("FLEET_PROBE_INTERVAL", 15*time.Second),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
