package bankapp

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr       = ":3000"
	defaultSessionTTL = 24
	defaultNodeID     = 1
)

type Config struct {
	Addr     string `yaml:"addr"`
	Database struct {
		ConnectionString string `yaml:"conn_str"`
	} `yaml:"database"`
	Session struct {
		Secret   string `yaml:"secret"`
		TTLHours int    `yaml:"ttl_hours"`
	} `yaml:"session"`
	Snowflake struct {
		Node int64 `yaml:"node"`
	} `yaml:"snowflake"`
}

// LoadConfig reads the YAML file at path (skipped when path is empty or the
// file does not exist), applies environment overrides, and validates. The
// database conn string and session secret have no fallback values; starting
// without them is a configuration error, not a degraded mode.
//
// Environment overrides: BIND_ADDR, DATABASE_URL, SESSION_SECRET,
// SESSION_TTL_HOURS, SNOWFLAKE_NODE.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err = yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// env-only configuration
		default:
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
	}

	if v := os.Getenv("BIND_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL_HOURS: %w", err)
		}
		cfg.Session.TTLHours = n
	}
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SNOWFLAKE_NODE: %w", err)
		}
		cfg.Snowflake.Node = n
	}

	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Session.TTLHours <= 0 {
		cfg.Session.TTLHours = defaultSessionTTL
	}
	if cfg.Snowflake.Node == 0 {
		cfg.Snowflake.Node = defaultNodeID
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Database.ConnectionString == "" {
		missing = append(missing, "database.conn_str (DATABASE_URL)")
	}
	if c.Session.Secret == "" {
		missing = append(missing, "session.secret (SESSION_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
