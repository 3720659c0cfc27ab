package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

type DbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ExecutionConfig holds the pipeline knobs: sandbox limits, queue retry
// policy, worker pool sizing, and per-user admission control.
type ExecutionConfig struct {
	TimeoutMs       int
	MemoryLimitKb   int
	CPUQuotaMicros  int64
	MaxAttempts     int
	BackoffBase     time.Duration
	QueueCapacity   int
	WorkerCount     int
	StartRatePerSec float64
	StartBurst      int

	AdmissionWindow time.Duration
	AdmissionMax    int
}

// RoomsConfig selects the room membership directory. Mode "open" admits
// every user; "seeded" restricts to the memberships listed in Seed
// ("room1:alice|bob,room2:carol").
type RoomsConfig struct {
	Mode string
	Seed string
}

// ImagesConfig maps each supported language to its sandbox image.
type ImagesConfig struct {
	JavaScript string
	Python     string
	Cpp        string
	Java       string
}

type Config struct {
	Server ServerConfig
	Db     DbConfig
	Exec   ExecutionConfig
	Images ImagesConfig
	Rooms  RoomsConfig

	// StoreBackend selects the execution record store: "postgres" or
	// "memory" (single-node, non-durable).
	StoreBackend string
}

// LoadConfig reads configuration from the environment, with .env support
// and defaults for everything but the database password.
func LoadConfig() (*Config, error) {
	// Best effort: absence of a .env file is not an error.
	_ = godotenv.Load()

	conf := &Config{
		Server: ServerConfig{
			Port:         getString("PORT", "8080"),
			ReadTimeout:  getInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Db: DbConfig{
			Host:     getString("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432),
			User:     getString("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getString("DB_NAME", "execd"),
			SSLMode:  getString("DB_SSLMODE", "disable"),
		},
		Exec: ExecutionConfig{
			TimeoutMs:       getInt("EXECUTION_TIMEOUT_MS", 10000),
			MemoryLimitKb:   getInt("EXECUTION_MEMORY_KB", 256*1024),
			CPUQuotaMicros:  int64(getInt("EXECUTION_CPU_QUOTA", 50000)), // 0.5 core
			MaxAttempts:     getInt("QUEUE_MAX_ATTEMPTS", 3),
			BackoffBase:     getDuration("QUEUE_BACKOFF_BASE", 2*time.Second),
			QueueCapacity:   getInt("QUEUE_CAPACITY", 100),
			WorkerCount:     getInt("WORKER_CONCURRENCY", 2),
			StartRatePerSec: getFloat("WORKER_START_RATE", 5),
			StartBurst:      getInt("WORKER_START_BURST", 5),
			AdmissionWindow: getDuration("ADMISSION_WINDOW", time.Minute),
			AdmissionMax:    getInt("ADMISSION_MAX", 5),
		},
		StoreBackend: getString("STORE_BACKEND", "postgres"),
		Rooms: RoomsConfig{
			Mode: getString("ROOMS_MODE", "open"),
			Seed: getString("ROOMS_SEED", ""),
		},
		Images: ImagesConfig{
			JavaScript: getString("IMAGE_JAVASCRIPT", "node:20-slim"),
			Python:     getString("IMAGE_PYTHON", "python:3.11-slim"),
			Cpp:        getString("IMAGE_CPP", "gcc:13"),
			Java:       getString("IMAGE_JAVA", "eclipse-temurin:21-jdk"),
		},
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if c.Exec.TimeoutMs <= 0 {
		return fmt.Errorf("EXECUTION_TIMEOUT_MS must be positive, got %d", c.Exec.TimeoutMs)
	}
	if c.Exec.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", c.Exec.MaxAttempts)
	}
	if c.Exec.WorkerCount < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Exec.WorkerCount)
	}
	if c.Exec.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1, got %d", c.Exec.QueueCapacity)
	}
	if c.Exec.StartRatePerSec <= 0 {
		return fmt.Errorf("WORKER_START_RATE must be positive, got %v", c.Exec.StartRatePerSec)
	}
	if c.Exec.AdmissionMax < 1 {
		return fmt.Errorf("ADMISSION_MAX must be at least 1, got %d", c.Exec.AdmissionMax)
	}
	if c.StoreBackend != "postgres" && c.StoreBackend != "memory" {
		return fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", c.StoreBackend)
	}
	if c.Rooms.Mode != "open" && c.Rooms.Mode != "seeded" {
		return fmt.Errorf("ROOMS_MODE must be open or seeded, got %q", c.Rooms.Mode)
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
