package simulation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/containment"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tochemey/goakt/v3/log"
)

//go:embed config.schema.json
var configSchema string

const configSchemaURL = "config.schema.json"

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid simulation configuration")

type Config struct {
	// Signaling
	GridSize         float64   `json:"gridSize"`
	MoleculeRanges   []float64 `json:"moleculeRanges"` // one entry per molecule type
	SignalingWorkers int       `json:"signalingWorkers"`

	// Containment
	Dish      containment.DishConfig `json:"dish"`
	Stiffness float64                `json:"stiffness"`
	Damping   float64                `json:"damping"`

	// Population
	NumCells       int     `json:"numCells"`
	CellRadius     float64 `json:"cellRadius"`
	SpawnHeight    float64 `json:"spawnHeight"` // above the dish floor
	ProductionRate float64 `json:"productionRate"`

	// Run
	Gravity   geometry.Vector3D `json:"gravity"`
	Ticks     int               `json:"ticks"`
	DeltaTime float64           `json:"deltaTime"` // seconds
	Seed      uint64            `json:"seed"`
	LogLevel  string            `json:"logLevel"`
}

func DefaultConfig() *Config {
	return &Config{
		GridSize:         20,
		MoleculeRanges:   []float64{100, 400},
		SignalingWorkers: 1,
		Dish:             containment.DefaultDishConfig(),
		Stiffness:        10,
		Damping:          2,
		NumCells:         200,
		CellRadius:       5,
		SpawnHeight:      20,
		ProductionRate:   1,
		Gravity:          geometry.Vector3D{Y: -9.81},
		Ticks:            600,
		DeltaTime:        1.0 / 60,
		Seed:             42,
		LogLevel:         "info",
	}
}

// Validate checks the rules the JSON schema cannot express.
func (c *Config) Validate() error {
	if !(c.GridSize > 0) {
		return fmt.Errorf("%w: gridSize must be > 0, got %v", ErrInvalidConfig, c.GridSize)
	}
	if len(c.MoleculeRanges) == 0 {
		return fmt.Errorf("%w: moleculeRanges must not be empty", ErrInvalidConfig)
	}
	for m, r := range c.MoleculeRanges {
		if !(r > 0) {
			return fmt.Errorf("%w: moleculeRanges[%d] must be > 0, got %v", ErrInvalidConfig, m, r)
		}
	}
	if err := c.Dish.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Stiffness < 0 || c.Damping < 0 {
		return fmt.Errorf("%w: stiffness and damping must be >= 0", ErrInvalidConfig)
	}
	if c.NumCells < 0 {
		return fmt.Errorf("%w: numCells must be >= 0, got %d", ErrInvalidConfig, c.NumCells)
	}
	if !(c.CellRadius > 0) {
		return fmt.Errorf("%w: cellRadius must be > 0, got %v", ErrInvalidConfig, c.CellRadius)
	}
	if !(c.DeltaTime > 0) {
		return fmt.Errorf("%w: deltaTime must be > 0, got %v", ErrInvalidConfig, c.DeltaTime)
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: unknown logLevel %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

var logLevels = map[string]log.Level{
	"debug":   log.DebugLevel,
	"info":    log.InfoLevel,
	"warn":    log.WarningLevel,
	"warning": log.WarningLevel,
	"error":   log.ErrorLevel,
}

// Level returns the goakt log level matching LogLevel, info when unset.
func (c *Config) Level() log.Level {
	if lvl, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return log.InfoLevel
}

// LoadConfig loads configuration from a JSON file, validates it against the
// embedded schema, and overlays it on DefaultConfig.
func LoadConfig(configFile string) (*Config, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString(configSchemaURL, configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Read Config File
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	// 3. Validate
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Unmarshal into Struct, omitted fields keep their default
	cfg := DefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
