// Package config handles the probe configuration file. The file is a
// JSON document holding the transport capability flags and the cache
// directory locations used by the backend clients.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Advanced contains the settings you should not touch unless you
// know what you are doing.
type Advanced struct {
	// InsecureBackend allows using plaintext http backends.
	InsecureBackend bool `json:"insecure_backend"`

	// InsecureCollector allows using plaintext http collectors.
	InsecureCollector bool `json:"insecure_collector"`
}

// Tor contains tor related settings.
type Tor struct {
	// SocksPort is the port of the local tor socks proxy.
	SocksPort int `json:"socks_port"`
}

// Paths contains the cache directory locations.
type Paths struct {
	// Inputs is the cache directory for input files.
	Inputs string `json:"inputs"`

	// Decks is the cache directory for decks.
	Decks string `json:"decks"`
}

// Config is the parsed configuration file.
type Config struct {
	Advanced Advanced `json:"advanced"`
	Tor      Tor      `json:"tor"`
	Paths    Paths    `json:"paths"`
}

// ReadConfig reads and parses the configuration file at path.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return ParseConfig(data)
}

// ParseConfig parses the given configuration file contents and fills
// in defaults for the paths that are not set.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := config.maybeSetDefaultPaths(); err != nil {
		return nil, err
	}
	return &config, nil
}

// maybeSetDefaultPaths fills in the default cache directories under
// the probe home for the paths the file leaves unset.
func (c *Config) maybeSetDefaultPaths() error {
	if c.Paths.Inputs != "" && c.Paths.Decks != "" {
		return nil
	}
	home, err := ProbeHomePath()
	if err != nil {
		return err
	}
	if c.Paths.Inputs == "" {
		c.Paths.Inputs = filepath.Join(home, "inputs")
	}
	if c.Paths.Decks == "" {
		c.Paths.Decks = filepath.Join(home, "decks")
	}
	return nil
}

// ProbeHomePath returns the directory holding the probe's
// configuration and caches.
func ProbeHomePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "finding home directory")
	}
	return filepath.Join(home, ".ooni"), nil
}

// DefaultConfigPath returns the default location of the
// configuration file.
func DefaultConfigPath() (string, error) {
	home, err := ProbeHomePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.json"), nil
}
