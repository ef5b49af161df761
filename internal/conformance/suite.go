package conformance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Suite binds one machine specification to the runners that must
// conform to it: which runners to build, how to configure them, and
// what fixtures to seed before replay.
type Suite struct {
	// Name uniquely identifies this suite.
	Name string `yaml:"name"`

	// Description explains what this suite verifies.
	Description string `yaml:"description"`

	// Spec is the path to the CUE machine file, relative to the suite
	// file location.
	Spec string `yaml:"spec"`

	// Runners selects and configures the runners under test.
	Runners RunnerSet `yaml:"runners"`

	// MaxSteps optionally bounds trace generation for this suite.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// RunnerSet configures runner construction. Only configured runners
// are built; a trace step whose kind has no registered runner diverges
// with the unknown variant, which is itself a conformance signal.
type RunnerSet struct {
	// TimeoutMS is the per-call timeout budget shared by every runner
	// in the suite. Zero means the default budget.
	TimeoutMS int64 `yaml:"timeout_ms,omitempty"`

	KV    *KVConfig    `yaml:"kv,omitempty"`
	DB    *DBConfig    `yaml:"db,omitempty"`
	Clock *ClockConfig `yaml:"clock,omitempty"`
	Rand  *RandConfig  `yaml:"rand,omitempty"`
	Log   *LogConfig   `yaml:"log,omitempty"`
	HTTP  *HTTPConfig  `yaml:"http,omitempty"`
}

// KVConfig builds the kv.get/kv.set/kv.delete runner trio over one
// shared store, optionally preloaded.
type KVConfig struct {
	Preload []KVEntry `yaml:"preload,omitempty"`
}

// KVEntry seeds one key before replay.
type KVEntry struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
	TTLMS int64  `yaml:"ttl_ms,omitempty"`
}

// DBConfig builds the db.query runner over a SQLite database. Setup
// statements run in order before replay; they establish schema and
// seed rows.
type DBConfig struct {
	// Path is the SQLite path; ":memory:" for an ephemeral database.
	Path  string   `yaml:"path"`
	Setup []string `yaml:"setup,omitempty"`
}

// ClockConfig builds the time.now runner. A fixed reading makes clock
// outcomes reproducible.
type ClockConfig struct {
	FixedMillis *int64 `yaml:"fixed_millis,omitempty"`
}

// RandConfig builds the rand.bytes runner.
type RandConfig struct {
	// MaxCount caps a single request; zero means the default cap.
	MaxCount int64 `yaml:"max_count,omitempty"`
}

// LogConfig builds the log.write runner.
type LogConfig struct {
	// Discard drops log output instead of writing it to stderr.
	Discard bool `yaml:"discard,omitempty"`
}

// HTTPConfig builds the http.request runner with the default client.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadSuite reads and parses a suite YAML file. Parsing is strict:
// unknown fields (typos) are errors. The spec path is resolved
// relative to the suite file's directory.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}

	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("parsing suite YAML: %w", err)
	}

	if suite.Spec != "" && !filepath.IsAbs(suite.Spec) {
		suite.Spec = filepath.Join(filepath.Dir(path), suite.Spec)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	r := s.Runners
	if r.KV == nil && r.DB == nil && r.Clock == nil && r.Rand == nil && r.Log == nil && r.HTTP == nil {
		return fmt.Errorf("at least one runner must be configured")
	}
	if r.TimeoutMS < 0 {
		return fmt.Errorf("runners.timeout_ms must be non-negative")
	}
	if r.DB != nil && r.DB.Path == "" {
		return fmt.Errorf("runners.db.path is required")
	}
	if r.KV != nil {
		for i, e := range r.KV.Preload {
			if e.Key == "" {
				return fmt.Errorf("runners.kv.preload[%d]: key is required", i)
			}
			if e.Value == nil {
				return fmt.Errorf("runners.kv.preload[%d]: value is required", i)
			}
			if e.TTLMS < 0 {
				return fmt.Errorf("runners.kv.preload[%d]: ttl_ms must be non-negative", i)
			}
		}
	}
	return nil
}
