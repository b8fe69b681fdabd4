package typelib

import (
	"fmt"
	"sort"
)

// Config carries driver-specific import/export options: an ordered
// multimap of string keys to string values. The core never interprets the
// contents; it only flattens nested maps and lists for transport to the
// format driver.
type Config struct {
	values map[string][]string
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{values: make(map[string][]string)}
}

// Set replaces the values bound to key with a single value.
func (c *Config) Set(key, value string) {
	c.values[key] = []string{value}
}

// Add appends value to the list bound to key.
func (c *Config) Add(key, value string) {
	c.values[key] = append(c.values[key], value)
}

// Get returns the first value bound to key, or the empty string.
func (c *Config) Get(key string) string {
	if c == nil {
		return ""
	}
	if v := c.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// GetAll returns every value bound to key, in insertion order.
func (c *Config) GetAll(key string) []string {
	if c == nil {
		return nil
	}
	return c.values[key]
}

// Has reports whether key carries at least one value.
func (c *Config) Has(key string) bool {
	return c != nil && len(c.values[key]) > 0
}

// Keys returns every bound key, sorted.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromMap flattens a nested mapping into a Config. Nested maps contribute
// dot-joined keys, lists contribute one value per element. Only strings,
// string lists and nested maps are accepted.
func FromMap(m map[string]any) (*Config, error) {
	c := NewConfig()
	if err := flattenInto(c, "", m); err != nil {
		return nil, err
	}
	return c, nil
}

func flattenInto(c *Config, prefix string, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m[k].(type) {
		case string:
			c.Add(key, v)
		case []string:
			for _, s := range v {
				c.Add(key, s)
			}
		case []any:
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return fmt.Errorf("config key %q: list element %T is not a string", key, e)
				}
				c.Add(key, s)
			}
		case map[string]any:
			if err := flattenInto(c, key, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("config key %q: unsupported value type %T", key, v)
		}
	}
	return nil
}
