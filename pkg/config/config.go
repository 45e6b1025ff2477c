// Package config loads the service configuration.
// Order: defaults, YAML file, .env file, process environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-sweep-elevator/pkg/elevator"
)

// Config is the full service configuration.
type Config struct {
	Port         string        `yaml:"port"`
	LogLevel     string        `yaml:"logLevel"`
	TickInterval time.Duration `yaml:"tickInterval"`
	Elevator     Elevator      `yaml:"elevator"`
}

// Elevator holds the car settings.
type Elevator struct {
	ID             string        `yaml:"id"`
	MinFloor       int           `yaml:"minFloor"`
	MaxFloor       int           `yaml:"maxFloor"`
	InitialFloor   int           `yaml:"initialFloor"`
	TravelTime     time.Duration `yaml:"travelTime"`
	DoorSpeed      time.Duration `yaml:"doorSpeed"`
	DoorOpenTime   time.Duration `yaml:"doorOpenTime"`
	DoorSettleTime time.Duration `yaml:"doorSettleTime"`
}

// Default returns the built-in configuration.
func Default() Config {
	ec := elevator.DefaultConfig()
	return Config{
		Port:         "8080",
		LogLevel:     "info",
		TickInterval: time.Second,
		Elevator: Elevator{
			ID:             ec.ID,
			MinFloor:       ec.MinFloor,
			MaxFloor:       ec.MaxFloor,
			InitialFloor:   ec.InitialFloor,
			TravelTime:     ec.TravelTime,
			DoorSpeed:      ec.DoorSpeed,
			DoorOpenTime:   ec.DoorOpenTime,
			DoorSettleTime: ec.DoorSettleTime,
		},
	}
}

// Load builds the configuration. Empty paths are skipped; a missing .env
// file is not an error, a missing YAML file is.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ELEVATOR_ID"); v != "" {
		c.Elevator.ID = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ELEVATOR_MIN_FLOOR", &c.Elevator.MinFloor},
		{"ELEVATOR_MAX_FLOOR", &c.Elevator.MaxFloor},
		{"ELEVATOR_INITIAL_FLOOR", &c.Elevator.InitialFloor},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	return nil
}

// Validate checks the settings New and the scheduler would reject, so the
// process fails before opening the listener.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tickInterval must be positive, got %s", c.TickInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	e := c.Elevator
	if e.MinFloor > e.MaxFloor {
		return fmt.Errorf("config: minFloor (%d) > maxFloor (%d)", e.MinFloor, e.MaxFloor)
	}
	if e.InitialFloor == elevator.ReservedFloor || e.InitialFloor < e.MinFloor || e.InitialFloor > e.MaxFloor {
		return fmt.Errorf("config: initialFloor %d is not a valid floor", e.InitialFloor)
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: logLevel: %w", err)
	}
	return lvl, nil
}

// ElevatorConfig converts the car section for elevator.New.
func (c Config) ElevatorConfig() elevator.Config {
	e := c.Elevator
	return elevator.Config{
		ID:             e.ID,
		MinFloor:       e.MinFloor,
		MaxFloor:       e.MaxFloor,
		InitialFloor:   e.InitialFloor,
		TravelTime:     e.TravelTime,
		DoorSpeed:      e.DoorSpeed,
		DoorOpenTime:   e.DoorOpenTime,
		DoorSettleTime: e.DoorSettleTime,
	}
}
