// Package config loads process settings from the environment and an
// optional .env file, and assembles the scenario and terrain a run needs.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/internal/terrain"
)

// Environment keys shared by the binaries.
const (
	EnvScenario          = "SIM_SCENARIO"
	EnvTerrain           = "SIM_TERRAIN"
	EnvTerrainBounds     = "SIM_TERRAIN_BOUNDS"
	EnvTerrainClassifier = "SIM_TERRAIN_CLASSIFIER"
	EnvTickInterval      = "SIM_TICK_INTERVAL"
	EnvAccelerated       = "SIM_ACCELERATED"
	EnvMaxDuration       = "SIM_MAX_DURATION"
)

// DefaultTerrainBounds matches the default scenario's world extent.
const DefaultTerrainBounds = "-5,-3,5,3"

// LoadDotEnv reads KEY=VALUE pairs from the given files (".env" when none
// are named) into the process environment. Variables already set win.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// String returns the value of key, or def when unset or blank.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ErrInvalidValue is returned when an environment variable is set but
// cannot be parsed as the requested type.
var ErrInvalidValue = errors.New("invalid environment value")

// lookup parses key with parse. Unset or blank keys yield def; malformed
// values yield def and an error naming the key.
func lookup[T any](key string, def T, parse func(string) (T, error)) (T, error) {
	raw := String(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, raw, err)
	}
	return v, nil
}

// Bool parses key with strconv.ParseBool.
func Bool(key string, def bool) (bool, error) {
	return lookup(key, def, strconv.ParseBool)
}

// Int parses key as a base-10 integer.
func Int(key string, def int) (int, error) {
	return lookup(key, def, strconv.Atoi)
}

// Float64 parses key as a decimal float.
func Float64(key string, def float64) (float64, error) {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// Duration parses key with time.ParseDuration, so "250ms" is valid and a
// bare "5" is not.
func Duration(key string, def time.Duration) (time.Duration, error) {
	return lookup(key, def, time.ParseDuration)
}

// WorldConfig points at the scenario and terrain files for a run. Empty paths
// select the built-in scenario and open water.
type WorldConfig struct {
	ScenarioPath      string
	TerrainPath       string
	TerrainBounds     string
	TerrainClassifier string
}

// WorldConfigFromEnv reads the SIM_SCENARIO and SIM_TERRAIN* variables.
func WorldConfigFromEnv() WorldConfig {
	return WorldConfig{
		ScenarioPath:      String(EnvScenario, ""),
		TerrainPath:       String(EnvTerrain, ""),
		TerrainBounds:     String(EnvTerrainBounds, DefaultTerrainBounds),
		TerrainClassifier: String(EnvTerrainClassifier, "blue-dominance"),
	}
}

// World is what a run controller is built from.
type World struct {
	Scenario *core.Scenario
	Terrain  core.TerrainQuery
}

// LoadWorld reads the scenario and terrain named by cfg.
func LoadWorld(ctx context.Context, cfg WorldConfig, log logging.Logger) (World, error) {
	if log == nil {
		log = logging.Noop()
	}
	w := World{Scenario: core.DefaultScenario()}

	if cfg.ScenarioPath != "" {
		f, err := os.Open(cfg.ScenarioPath)
		if err != nil {
			return World{}, fmt.Errorf("open scenario: %w", err)
		}
		defer f.Close()
		sc, err := core.LoadScenario(f)
		if err != nil {
			return World{}, fmt.Errorf("load scenario %s: %w", cfg.ScenarioPath, err)
		}
		w.Scenario = sc
		log.Info(ctx, "loaded scenario",
			logging.String("path", cfg.ScenarioPath),
			logging.Int("templates", len(sc.Templates)),
			logging.Int("spawns", len(sc.Spawns)),
			logging.Int("overrides", len(sc.Overrides)),
		)
	}

	if cfg.TerrainPath == "" {
		log.Info(ctx, "no terrain map configured; all water is navigable")
		return w, nil
	}

	if cfg.TerrainBounds == "" {
		cfg.TerrainBounds = DefaultTerrainBounds
	}
	bounds, err := terrain.ParseBounds(cfg.TerrainBounds)
	if err != nil {
		return World{}, err
	}
	cls, err := terrain.ParseClassifier(cfg.TerrainClassifier)
	if err != nil {
		return World{}, err
	}
	f, err := os.Open(cfg.TerrainPath)
	if err != nil {
		return World{}, fmt.Errorf("open terrain: %w", err)
	}
	defer f.Close()
	mask, err := terrain.LoadColorMask(f, bounds, cls)
	if err != nil {
		return World{}, err
	}
	w.Terrain = mask
	log.Info(ctx, "loaded terrain map",
		logging.String("path", cfg.TerrainPath),
		logging.String("bounds", cfg.TerrainBounds),
		logging.Float64("water_fraction", mask.WaterFraction()),
	)
	return w, nil
}
