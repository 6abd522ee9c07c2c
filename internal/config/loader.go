package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/example/school-bell/internal/recurrence"
)

// DefaultEnvFile is read by Load when present.
const DefaultEnvFile = ".env"

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures environment driven configuration values for the bell server.
type Config struct {
	HTTPPort      int
	Storage       string
	SQLiteDSN     string
	Location      *time.Location
	DayCodes      recurrence.DayCodes
	DeviceURL     string
	DeviceTimeout time.Duration
	TickInterval  time.Duration
	MQTTBroker    string
	MQTTTopic     string
	GPIOPin       int
	LogLevel      slog.Level
}

// Load parses configuration from the process environment, falling back to
// values in DefaultEnvFile.
func Load() (Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile parses configuration from the process environment, falling back to
// values in the dotenv file at path. A missing file is not an error. Process
// variables always win over the file.
func LoadFile(path string) (Config, error) {
	fileValues := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("falha ao ler %s: %w", path, err)
		}
	}

	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}
	return parse(lookup)
}

func parse(lookup func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		Storage:       StorageSQLite,
		SQLiteDSN:     "file:bell.db",
		DayCodes:      recurrence.DefaultDayCodes,
		DeviceTimeout: 3 * time.Second,
		TickInterval:  20 * time.Second,
		MQTTTopic:     "school/bell/events",
		GPIOPin:       -1,
		LogLevel:      slog.LevelInfo,
	}

	invalid := make([]string, 0, 2)

	if portValue := lookup("BELL_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "BELL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if storage := strings.ToLower(lookup("BELL_STORAGE")); storage != "" {
		switch storage {
		case StorageSQLite, StorageMemory:
			cfg.Storage = storage
		default:
			invalid = append(invalid, "BELL_STORAGE")
		}
	}

	if dsn := lookup("BELL_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	zone := lookup("BELL_TIMEZONE")
	if zone == "" {
		zone = "America/Sao_Paulo"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "BELL_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if codesValue := lookup("BELL_WEEKDAY_CODES"); codesValue != "" {
		codes, err := recurrence.NewDayCodes(strings.Split(codesValue, ","))
		if err != nil {
			invalid = append(invalid, "BELL_WEEKDAY_CODES")
		} else {
			cfg.DayCodes = codes
		}
	}

	cfg.DeviceURL = lookup("BELL_DEVICE_URL")

	if timeoutValue := lookup("BELL_DEVICE_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "BELL_DEVICE_TIMEOUT")
		} else {
			cfg.DeviceTimeout = timeout
		}
	}

	if intervalValue := lookup("BELL_TICK_INTERVAL"); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval < time.Second || interval > time.Minute {
			invalid = append(invalid, "BELL_TICK_INTERVAL")
		} else {
			cfg.TickInterval = interval
		}
	}

	cfg.MQTTBroker = lookup("BELL_MQTT_BROKER")
	if topic := lookup("BELL_MQTT_TOPIC"); topic != "" {
		cfg.MQTTTopic = topic
	}

	if pinValue := lookup("BELL_GPIO_PIN"); pinValue != "" {
		pin, err := strconv.Atoi(pinValue)
		if err != nil || pin < -1 {
			invalid = append(invalid, "BELL_GPIO_PIN")
		} else {
			cfg.GPIOPin = pin
		}
	}

	if levelValue := lookup("BELL_LOG_LEVEL"); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "BELL_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente com valor inválido: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// PushEnabled reports whether rings are pushed to the device.
func (c Config) PushEnabled() bool {
	return c.DeviceURL != "" || c.GPIOPin >= 0
}
