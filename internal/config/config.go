package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type SnowflakeCfg struct {
	User      string
	Password  string
	Account   string
	Warehouse string
	Database  string
	Schema    string
}

type Config struct {
	Addr     string
	LogLevel string

	RedisURL       string
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
	L1CacheSize    int

	Snowflake    SnowflakeCfg
	QueryTimeout time.Duration

	// Trailing leaderboard windows in days, ascending. Primary drives the
	// final row ordering and must be one of Windows.
	Windows       []int
	PrimaryWindow int
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8081"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisURL:       getenv("REDIS", "redis://localhost:6379/0"),
		CacheTTL:       getduration("CACHE_TTL", 21600*time.Second),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		L1CacheSize:    getint("L1_CACHE_SIZE", 128),

		Snowflake: SnowflakeCfg{
			User:      os.Getenv("SNOWFLAKE_USER"),
			Password:  os.Getenv("SNOWFLAKE_PASS"),
			Account:   os.Getenv("SNOWFLAKE_ACCOUNT"),
			Warehouse: os.Getenv("SNOWFLAKE_WAREHOUSE"),
			Database:  getenv("SNOWFLAKE_DATABASE", "BUNDLEBEAR"),
			Schema:    getenv("SNOWFLAKE_SCHEMA", "DBT_KOFI"),
		},
		QueryTimeout: getduration("QUERY_TIMEOUT", 30*time.Second),

		Windows:       parseWindows(getenv("LEADERBOARD_WINDOWS", "7,30,90")),
		PrimaryWindow: getint("LEADERBOARD_PRIMARY_WINDOW", 30),
	}
}

// Validate reports configuration that cannot produce a working service.
func (c Config) Validate() error {
	if c.Snowflake.User == "" || c.Snowflake.Password == "" || c.Snowflake.Account == "" {
		return fmt.Errorf("snowflake credentials missing (SNOWFLAKE_USER/SNOWFLAKE_PASS/SNOWFLAKE_ACCOUNT)")
	}
	if c.Snowflake.Warehouse == "" {
		return fmt.Errorf("SNOWFLAKE_WAREHOUSE is required")
	}
	if len(c.Windows) == 0 {
		return fmt.Errorf("at least one leaderboard window is required")
	}
	seen := map[int]bool{}
	for _, d := range c.Windows {
		if d <= 0 {
			return fmt.Errorf("leaderboard window must be positive, got %d", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate leaderboard window %d", d)
		}
		seen[d] = true
	}
	if !seen[c.PrimaryWindow] {
		return fmt.Errorf("primary window %d is not in LEADERBOARD_WINDOWS", c.PrimaryWindow)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			// bare number means seconds, matching the upstream cache config
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// parse "7,30,90" into a sorted list of day counts
func parseWindows(s string) []int {
	out := []int{}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
