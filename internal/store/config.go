package store

import (
	"database/sql"
	"strconv"

	"github.com/Pranav1703/queuectl/internal/model"
)

// defaults materialized into the config table on first read of a
// recognised key, per spec.md §3's Config table.
var defaults = map[string]string{
	"max_retries":          "3",
	"backoff_base":         "2",
	"poll_interval_ms":     "500",
	"default_timeout_secs": "60",
}

// Config is a typed view over the config table, backed by the same
// database connection as the job store (spec.md §4.4).
type Config struct {
	db *sql.DB
}

// Config returns the typed config view backed by this store's database.
func (s *Store) Config() *Config {
	return &Config{db: s.db}
}

// Get returns a key's value, or ("", false) if unset. Materializes the
// default for recognised keys on first read.
func (c *Config) Get(key string) (string, bool, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, model.WrapStorage("get config key", err)
	}
	if def, ok := defaults[key]; ok {
		if err := c.Set(key, def); err != nil {
			return "", false, err
		}
		return def, true, nil
	}
	return "", false, nil
}

// Set upserts a key/value pair. Unknown keys are accepted for
// forward-compatibility but ignored by the core.
func (c *Config) Set(key, value string) error {
	_, err := c.db.Exec(`INSERT INTO config(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return model.WrapStorage("set config key", err)
	}
	return nil
}

// All returns every config key/value, materializing all recognised
// defaults first.
func (c *Config) All() (map[string]string, error) {
	for k := range defaults {
		if _, _, err := c.Get(k); err != nil {
			return nil, err
		}
	}
	rows, err := c.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, model.WrapStorage("list config", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, model.WrapStorage("scan config row", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (c *Config) intOrDefault(key string, fallback int) int {
	v, ok, err := c.Get(key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (c *Config) floatOrDefault(key string, fallback float64) float64 {
	v, ok, err := c.Get(key)
	if err != nil || !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (c *Config) MaxRetries() int         { return c.intOrDefault("max_retries", 3) }
func (c *Config) BackoffBase() float64    { return c.floatOrDefault("backoff_base", 2) }
func (c *Config) PollIntervalMS() int     { return c.intOrDefault("poll_interval_ms", 500) }
func (c *Config) DefaultTimeoutSecs() int { return c.intOrDefault("default_timeout_secs", 60) }

// SetTyped validates a numeric config value before writing it, returning
// InvalidInput on malformed input for a recognised numeric key.
func (c *Config) SetTyped(key, value string) error {
	switch key {
	case "max_retries", "poll_interval_ms", "default_timeout_secs":
		if _, err := strconv.Atoi(value); err != nil {
			return model.NewInvalidInput("value for " + key + " must be an integer")
		}
	case "backoff_base":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 1 {
			return model.NewInvalidInput("value for backoff_base must be a number > 1")
		}
	}
	return c.Set(key, value)
}
