package config

import (
	"fmt"
	"os"
	"time"

	"classroom-competition/internal/roster"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Questions struct {
		TTL   string `yaml:"ttl"`
		Grade int    `yaml:"grade"`
		Count int    `yaml:"count"`
		// Sets maps a set ID to a JSON array of questions on disk.
		Sets map[string]QuestionSetFile `yaml:"sets"`
	} `yaml:"questions"`
	Competition struct {
		DurationMinutes int `yaml:"durationMinutes"`
	} `yaml:"competition"`
	Chat struct {
		History  int `yaml:"history"`
		Telegram struct {
			Token    string `yaml:"token" env:"TELEGRAM_TOKEN"`
			ChatID   int64  `yaml:"chatId" env:"TELEGRAM_CHAT_ID"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"telegram"`
	} `yaml:"chat"`
	Classrooms map[string]roster.Classroom `yaml:"classrooms"`
}

// QuestionSetFile points at a JSON array of questions.
type QuestionSetFile struct {
	Title string `yaml:"title"`
	Grade int    `yaml:"grade"`
	File  string `yaml:"file"`
}

// Load reads YAML config from path, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv overrides fields tagged with env from the environment; unset variables
// leave the YAML value alone.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
