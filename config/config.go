package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address  string
		HTTPPort string
	}
	Database struct {
		Driver string // "postgres" | "mysql" | "sqlite" | "" (без БД)
		DSN    string
	}
	Logging struct {
		Level  string
		Format string // "text" | "json"
		File   string
	}
	Stats struct {
		// IANA-имя зоны для границ календарного дня агрегатов.
		// Пусто — локальная зона сервера.
		Timezone string
	}
	Ingest struct {
		// Предел повторов read-modify-write при конфликте записи.
		MaxRetries int
	}
}

// Load читает config.yaml (если есть) и переменные окружения FLINT_*.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("stats.timezone", "")
	v.SetDefault("ingest.max_retries", 3)

	v.SetEnvPrefix("FLINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/flint")
	}
	if err := v.ReadInConfig(); err != nil {
		// отсутствие файла при поиске по умолчанию — не ошибка
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	cfg.Server.Address = v.GetString("server.address")
	cfg.Server.HTTPPort = v.GetString("server.http_port")
	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.DSN = v.GetString("database.dsn")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Stats.Timezone = v.GetString("stats.timezone")
	cfg.Ingest.MaxRetries = v.GetInt("ingest.max_retries")
	return cfg, nil
}
