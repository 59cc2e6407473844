// Package config loads and validates the sandbox server's top-level
// configuration file: which OpenAPI document and scenario file to serve,
// which state store backend to run, validation strictness, the
// determinism seed, and the chaos-injection knobs (spec §6). Decodes
// strictly via internal/common/yamlutil and fails fast with a Validate
// pass before anything is wired up.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/oas-sandbox/engine/internal/common/yamlutil"
	"github.com/oas-sandbox/engine/internal/logging"
	"github.com/oas-sandbox/engine/internal/store/filestore"
)

// Config is the sandbox server's full configuration surface (spec §6).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OAS       string          `yaml:"oas"`
	Scenarios string          `yaml:"scenarios"`
	Store     StoreConfig     `yaml:"store"`
	Validate  ValidateConfig  `yaml:"validate"`
	Seed      string          `yaml:"seed"`
	Chaos     ChaosConfig     `yaml:"chaos,omitempty"`
	Log       logging.Config  `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Audit     *AuditConfig    `yaml:"audit,omitempty"`
}

// AuditConfig configures the optional ClickHouse event sink. Nil means
// auditing is disabled.
type AuditConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Table    string `yaml:"table,omitempty"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// StoreConfig holds exactly one of Memory, File, or Network - whichever
// backend the operator selected (spec §6's store union).
type StoreConfig struct {
	Memory  *MemoryStoreConfig  `yaml:"memory,omitempty"`
	File    *FileStoreConfig    `yaml:"file,omitempty"`
	Network *NetworkStoreConfig `yaml:"network,omitempty"`
}

type MemoryStoreConfig struct {
	MaxSize    int           `yaml:"maxSize,omitempty"`
	DefaultTTL time.Duration `yaml:"defaultTtl,omitempty"`
}

type FileStoreConfig struct {
	Path               string        `yaml:"path"`
	CompactionInterval time.Duration `yaml:"compactionInterval,omitempty"`
	SnapshotOnShutdown bool          `yaml:"snapshotOnShutdown"`
	Compression        string        `yaml:"compression,omitempty"` // none, snappy, lz4
}

type NetworkStoreConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// ValidateConfig controls request/response schema enforcement strictness.
type ValidateConfig struct {
	Requests  bool   `yaml:"requests"`
	Responses string `yaml:"responses"` // "strict", "warn", or "" / false
}

type ChaosConfig struct {
	Latency   time.Duration `yaml:"latency,omitempty"`
	ErrorRate float64       `yaml:"errorRate,omitempty"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Load reads, strictly decodes, and validates the configuration file at
// path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Store.Memory == nil && c.Store.File == nil && c.Store.Network == nil {
		c.Store.Memory = &MemoryStoreConfig{}
	}
	if c.Log.Level == "" && !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log = logging.Default()
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "sandbox"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Audit != nil && c.Audit.Table == "" {
		c.Audit.Table = "sandbox_audit_events"
	}
	if c.Validate.Responses == "false" {
		c.Validate.Responses = ""
	}
}

// Validate checks the decoded configuration for required fields and
// mutually-exclusive options, failing fast at startup rather than at the
// first request that needs the missing piece.
func (c *Config) Validate() error {
	if c.OAS == "" {
		return fmt.Errorf("oas is required")
	}

	backendCount := 0
	if c.Store.Memory != nil {
		backendCount++
	}
	if c.Store.File != nil {
		backendCount++
		if c.Store.File.Path == "" {
			return fmt.Errorf("store.file.path is required")
		}
	}
	if c.Store.Network != nil {
		backendCount++
		if c.Store.Network.Host == "" {
			return fmt.Errorf("store.network.host is required")
		}
	}
	if backendCount > 1 {
		return fmt.Errorf("store: exactly one of memory, file, network must be set")
	}

	switch c.Validate.Responses {
	case "", "warn", "strict":
	default:
		return fmt.Errorf("validate.responses must be one of \"\", \"warn\", \"strict\"")
	}

	if c.Chaos.ErrorRate < 0 || c.Chaos.ErrorRate > 1 {
		return fmt.Errorf("chaos.errorRate must be in [0,1]")
	}

	if c.Store.File != nil {
		switch filestore.Algorithm(c.Store.File.Compression) {
		case "", filestore.AlgorithmNone, filestore.AlgorithmSnappy, filestore.AlgorithmLZ4:
		default:
			return fmt.Errorf("store.file.compression must be one of none, snappy, lz4")
		}
	}

	if c.Audit != nil && c.Audit.Addr == "" {
		return fmt.Errorf("audit.addr is required when audit is configured")
	}

	return nil
}

// SeedInt64 derives the pipeline's numeric determinism seed from the
// configured seed string, so operators can write a memorable seed
// ("release-42") instead of a raw integer.
func (c *Config) SeedInt64() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Seed))
	return int64(h.Sum64())
}
