package bp

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/fgbp/algebra"
)

// UpdateOrder says whether a sweep reads messages written earlier in the
// same sweep.
type UpdateOrder string

const (
	// Sequential updates each message in place, in schedule order.
	Sequential UpdateOrder = "sequential"
	// Parallel computes every message of a sweep from the previous sweep's
	// messages.
	Parallel UpdateOrder = "parallel"
)

// ScheduleKind selects the order messages are visited in.
type ScheduleKind string

const (
	// TreeLike sends messages leaves-to-root then root-to-leaves along a
	// breadth-first order of each connected component.
	TreeLike ScheduleKind = "tree-like"
	// Random visits messages in a fresh seeded permutation every sweep.
	Random ScheduleKind = "random"
)

// Config holds belief propagation parameters.
type Config struct {
	Algebra              algebra.Kind `json:"algebra" yaml:"algebra" validate:"oneof=real log log-table"`
	MaxIterations        int          `json:"max_iterations" yaml:"max_iterations" validate:"gte=1"`
	UpdateOrder          UpdateOrder  `json:"update_order" yaml:"update_order" validate:"oneof=sequential parallel"`
	Schedule             ScheduleKind `json:"schedule" yaml:"schedule" validate:"oneof=tree-like random"`
	NormalizeMessages    bool         `json:"normalize_messages" yaml:"normalize_messages"`
	ConvergenceThreshold float64      `json:"convergence_threshold" yaml:"convergence_threshold" validate:"gte=0"`
	// CacheFactorBeliefs computes every dense factor belief once when the
	// run finishes instead of on each FactorMarginals call.
	CacheFactorBeliefs bool `json:"cache_factor_beliefs" yaml:"cache_factor_beliefs"`
	// Seed drives the random schedule.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		Algebra:              algebra.KindLog,
		MaxIterations:        100,
		UpdateOrder:          Sequential,
		Schedule:             TreeLike,
		NormalizeMessages:    true,
		ConvergenceThreshold: 1e-8,
		CacheFactorBeliefs:   true,
		Seed:                 1,
	}
}

var validate = validator.New()

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("bp: invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the file at path (YAML,
// falling back to JSON; an empty path or missing file is skipped), then
// FGBP_* environment variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("bp: load config file: %w", err)
		}
	}

	loadConfigFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("FGBP_ALGEBRA"); v != "" {
		cfg.Algebra = algebra.Kind(v)
	}
	if v := os.Getenv("FGBP_MAX_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = i
		}
	}
	if v := os.Getenv("FGBP_UPDATE_ORDER"); v != "" {
		cfg.UpdateOrder = UpdateOrder(v)
	}
	if v := os.Getenv("FGBP_SCHEDULE"); v != "" {
		cfg.Schedule = ScheduleKind(v)
	}
	if v := os.Getenv("FGBP_NORMALIZE_MESSAGES"); v != "" {
		cfg.NormalizeMessages = v == "true" || v == "1"
	}
	if v := os.Getenv("FGBP_CONVERGENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConvergenceThreshold = f
		}
	}
	if v := os.Getenv("FGBP_CACHE_FACTOR_BELIEFS"); v != "" {
		cfg.CacheFactorBeliefs = v == "true" || v == "1"
	}
	if v := os.Getenv("FGBP_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = i
		}
	}
}
