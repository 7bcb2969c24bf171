package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yml"

const (
	RepositoryInMemory = "inmemory"
	RepositoryPostgres = "postgres"
	RepositoryREST     = "rest"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Repository RepositoryConfig `yaml:"repository"`
	Database   DatabaseConfig   `yaml:"database"`
	Sync       SyncConfig       `yaml:"sync"`
	Worker     WorkerConfig     `yaml:"worker"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	Host              string        `yaml:"host"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"` // 0 - без ограничения, поток событий держит соединение
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RateLimit         int           `yaml:"rate_limit"` // запросов в минуту с одного IP, 0 - без лимита
}

type RepositoryConfig struct {
	Type         string        `yaml:"type"` // "inmemory", "postgres" или "rest"
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	SeedProjects []string      `yaml:"seed_projects"` // проекты, заводимые в inmemory при старте
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type SyncConfig struct {
	Delay       time.Duration `yaml:"delay"`
	MaxRetries  int           `yaml:"max_retries"`
	Backoff     time.Duration `yaml:"backoff"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	EventBuffer int           `yaml:"event_buffer"`
}

type WorkerConfig struct {
	ReloadInterval time.Duration `yaml:"reload_interval"` // 0 отключает воркер
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadHeaderTimeout: 10 * time.Second,
			RequestTimeout:    30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimit:         100,
		},
		Repository: RepositoryConfig{
			Type:         RepositoryREST,
			BaseURL:      "http://localhost:8000",
			Timeout:      10 * time.Second,
			SeedProjects: []string{"demo"},
		},
		Sync: SyncConfig{
			Delay:       500 * time.Millisecond,
			Backoff:     100 * time.Millisecond,
			CallTimeout: 10 * time.Second,
			EventBuffer: 16,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load читает .env, затем файл из PLANORA_CONFIG или config.yml, затем
// переменные окружения PLANORA_*. Отсутствие файла по умолчанию не ошибка.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("чтение .env: %w", err)
	}

	path, explicit := os.LookupEnv("PLANORA_CONFIG")
	if !explicit {
		path = DefaultPath
	}

	cfg, err := LoadFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile накладывает файл на значения по умолчанию
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("PLANORA_HOST", &c.Server.Host)
	setString("PLANORA_PORT", &c.Server.Port)
	setString("PLANORA_REPOSITORY_TYPE", &c.Repository.Type)
	setString("PLANORA_BACKEND_URL", &c.Repository.BaseURL)
	setString("PLANORA_DATABASE_URL", &c.Database.URL)
	setString("PLANORA_LOG_LEVEL", &c.Logging.Level)

	if v, ok := os.LookupEnv("PLANORA_DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PLANORA_DEVELOPMENT: %w", err)
		}
		c.Logging.Development = b
	}
	if v, ok := os.LookupEnv("PLANORA_SYNC_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PLANORA_SYNC_DELAY: %w", err)
		}
		c.Sync.Delay = d
	}
	if v, ok := os.LookupEnv("PLANORA_CORS_ORIGINS"); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(raw string) []string {
	var res []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port не задан"))
	}
	switch c.Repository.Type {
	case RepositoryInMemory:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url обязателен для postgres"))
		}
	case RepositoryREST:
		if c.Repository.BaseURL == "" {
			errs = append(errs, errors.New("repository.base_url обязателен для rest"))
		}
	default:
		errs = append(errs, fmt.Errorf("неизвестный repository.type %q", c.Repository.Type))
	}
	if c.Sync.Delay <= 0 {
		errs = append(errs, errors.New("sync.delay должен быть больше нуля"))
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, errors.New("sync.max_retries не может быть отрицательным"))
	}
	if c.Worker.ReloadInterval < 0 {
		errs = append(errs, errors.New("worker.reload_interval не может быть отрицательным"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit не может быть отрицательным"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("неверная конфигурация: %w", err)
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
