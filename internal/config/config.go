// Package config loads WireState's optional project file, following the
// teacher's config.LoadConfig: load .env first (so CI secrets/tuning land
// in the process environment), then a YAML project file, then let specific
// environment variables override individual fields. A missing project file
// is not an error here -- unlike the teacher, where the YAML file is the
// only source of the API key, WireState's defaults are usable standalone
// (§6 gives every flag a default), so LoadConfig degrades to zero values
// instead of failing.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config mirrors the subset of §6's CLI flags that also make sense as
// project-file defaults.
type Config struct {
	SrcDir    string `yaml:"srcDir"`
	CacheDir  string `yaml:"cacheDir"`
	Generator string `yaml:"generator"`
}

// LoadConfig reads path (typically "wirestate.yaml"); if it does not exist,
// an empty Config is returned with no error so the CLI can fall back to its
// own flag defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("WIRESTATE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("WIRESTATE_GENERATOR"); v != "" {
		cfg.Generator = v
	}
	return &cfg, nil
}
