package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v2"

	"github.com/ryandielhenn/zephyrcore/pkg/executor"
)

// Configuration is the complete process configuration.
type Configuration struct {
	Node     NodeConfig      `yaml:"node"`
	Log      LogConfig       `yaml:"log"`
	Cache    CacheConfig     `yaml:"cache"`
	Executor executor.Config `yaml:"executor"`
	Etcd     EtcdConfig      `yaml:"etcd"`
}

type NodeConfig struct {
	ID              string        `yaml:"id"`
	Addr            string        `yaml:"addr"`   // advertised address
	Listen          string        `yaml:"listen"` // local bind address
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// CacheConfig describes the eviction engine. Capacity is a human readable
// byte size such as "64MB".
type CacheConfig struct {
	Capacity string `yaml:"capacity"`
	Shards   int    `yaml:"shards"`
	Index    string `yaml:"index"` // "hash" or "ordered"
}

type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	LeaseTTL    int64         `yaml:"lease_ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Enabled reports whether node registration is configured.
func (e EtcdConfig) Enabled() bool { return len(e.Endpoints) > 0 }

const (
	IndexHash    = "hash"
	IndexOrdered = "ordered"
)

// Default returns the configuration used when no file is given.
func Default() *Configuration {
	return &Configuration{
		Node: NodeConfig{
			Listen:          ":8080",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			Capacity: "64MB",
			Shards:   16,
			Index:    IndexHash,
		},
		Executor: executor.Config{
			LowWatermark:  4,
			HighWatermark: 64,
			MaxQueueSize:  1024,
			IdleTimeout:   30 * time.Second,
		},
		Etcd: EtcdConfig{
			Prefix:      "/zephyr/nodes",
			LeaseTTL:    10,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load reads path on top of the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Configuration, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Configuration) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	str("SELF_ID", &c.Node.ID)
	str("SELF_ADDR", &c.Node.Addr)
	str("LISTEN_ADDR", &c.Node.Listen)
	str("LOG_LEVEL", &c.Log.Level)
	str("CACHE_CAPACITY", &c.Cache.Capacity)
	str("CACHE_INDEX", &c.Cache.Index)
	if v, ok := lookup("ETCD_ENDPOINTS"); ok && v != "" {
		c.Etcd.Endpoints = splitList(v)
	}

	for name, dst := range map[string]*int{
		"CACHE_SHARDS":            &c.Cache.Shards,
		"EXECUTOR_LOW_WATERMARK":  &c.Executor.LowWatermark,
		"EXECUTOR_HIGH_WATERMARK": &c.Executor.HighWatermark,
		"EXECUTOR_MAX_QUEUE":      &c.Executor.MaxQueueSize,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return dur("EXECUTOR_IDLE_TIMEOUT", &c.Executor.IdleTimeout)
}

// CapacityBytes parses Cache.Capacity.
func (c *Configuration) CapacityBytes() (int64, error) {
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(strings.TrimSpace(c.Cache.Capacity))); err != nil {
		return 0, fmt.Errorf("cache capacity %q: %w", c.Cache.Capacity, err)
	}
	return int64(bs.Bytes()), nil
}

// Validate rejects settings the components cannot clamp on their own.
func (c *Configuration) Validate() error {
	capacity, err := c.CapacityBytes()
	if err != nil {
		return err
	}
	if capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %q", c.Cache.Capacity)
	}
	if c.Cache.Shards <= 0 {
		return fmt.Errorf("cache shards must be positive, got %d", c.Cache.Shards)
	}
	if int64(c.Cache.Shards) > capacity {
		return fmt.Errorf("cache capacity %d too small for %d shards", capacity, c.Cache.Shards)
	}
	switch c.Cache.Index {
	case IndexHash, IndexOrdered:
	default:
		return fmt.Errorf("cache index must be %q or %q, got %q", IndexHash, IndexOrdered, c.Cache.Index)
	}
	if c.Executor.LowWatermark < 0 || c.Executor.HighWatermark < 0 || c.Executor.MaxQueueSize < 0 {
		return fmt.Errorf("executor sizes must not be negative")
	}
	if c.Node.Listen == "" {
		return fmt.Errorf("node listen address is empty")
	}
	if c.Etcd.Enabled() {
		if c.Node.ID == "" {
			return fmt.Errorf("node id is required for etcd registration")
		}
		if c.Etcd.LeaseTTL <= 0 {
			return fmt.Errorf("etcd lease ttl must be positive, got %d", c.Etcd.LeaseTTL)
		}
	}
	return nil
}

// Save writes c as YAML.
func (c *Configuration) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
