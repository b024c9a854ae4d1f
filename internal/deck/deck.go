// Package deck implements test decks: bundles of net test
// configurations with associated required inputs. A deck knows how
// to materialize the inputs of its tests from the collector cache
// and how to resolve collector and test helper assignments against
// the bouncer.
package deck

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/irl/ooni-probe/internal/backendclient"
	"github.com/irl/ooni-probe/internal/model"
	"github.com/irl/ooni-probe/internal/probeservices"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInsecureCollector indicates that a test wants a plaintext
	// http collector and configuration does not allow that.
	ErrInsecureCollector = errors.New("deck: insecure collector not allowed")

	// ErrHTTPSCollectorUnsupported indicates that a test wants an
	// https collector but the TLS stack is too old for that.
	ErrHTTPSCollectorUnsupported = errors.New("deck: https collector not supported")

	// ErrUnableToLoadDeckInput indicates that downloading or
	// verifying a required input failed. This is fatal to deck
	// setup: there is no partial acceptance.
	ErrUnableToLoadDeckInput = errors.New("deck: unable to load deck input")
)

// tlsSupported returns whether the platform TLS stack is recent
// enough for https collectors. Tests override this.
var tlsSupported = func() bool { return true }

// Entry is a single test inside a deck file.
type Entry struct {
	Options EntryOptions `yaml:"options"`
}

// EntryOptions are the options of a deck entry.
type EntryOptions struct {
	TestFile    string            `yaml:"test_file"`
	Subargs     []string          `yaml:"subargs"`
	Collector   string            `yaml:"collector"`
	Annotations map[string]string `yaml:"annotations"`
}

// Config contains configuration for creating a Deck.
type Config struct {
	// Bouncer is the OPTIONAL bouncer address. Without a bouncer the
	// deck cannot resolve missing collectors or helpers.
	Bouncer string

	// NoCollector OPTIONALLY suppresses collector resolution.
	NoCollector bool

	// InsecureBackend OPTIONALLY allows plaintext backends.
	InsecureBackend bool

	// InsecureCollector OPTIONALLY allows plaintext collectors.
	InsecureCollector bool

	// TorSocksPort is the local tor socks port, used when an input
	// or lookup must travel through an onion backend.
	TorSocksPort int

	// InputsDir is the MANDATORY cache directory for input files.
	InputsDir string

	// DecksDir is the cache directory for decks.
	DecksDir string

	// Logger is the MANDATORY logger to use.
	Logger model.Logger

	// UserAgent is the OPTIONAL user agent to use.
	UserAgent string

	// NewCollector OPTIONALLY overrides how we build collector
	// clients. Mainly useful for testing.
	NewCollector func(address string) (*probeservices.Collector, error)

	// NewBouncer OPTIONALLY overrides how we build bouncer
	// clients. Mainly useful for testing.
	NewBouncer func(address string) (*probeservices.Bouncer, error)
}

// newConn builds a backend connection for the given address using
// the deck level configuration.
func (c *Config) newConn(address string) (*backendclient.Conn, error) {
	return backendclient.NewConn(&backendclient.Config{
		Address:         address,
		InsecureBackend: c.InsecureBackend,
		Logger:          c.Logger,
		TorSocksPort:    c.TorSocksPort,
		UserAgent:       c.UserAgent,
	})
}

func (c *Config) collector(address string) (*probeservices.Collector, error) {
	if c.NewCollector != nil {
		return c.NewCollector(address)
	}
	conn, err := c.newConn(address)
	if err != nil {
		return nil, err
	}
	return probeservices.NewCollector(conn, c.InputsDir, c.DecksDir), nil
}

func (c *Config) bouncer(address string) (*probeservices.Bouncer, error) {
	if c.NewBouncer != nil {
		return c.NewBouncer(address)
	}
	conn, err := c.newConn(address)
	if err != nil {
		return nil, err
	}
	return probeservices.NewBouncer(conn), nil
}

// Deck is a bundle of net tests with associated required inputs.
type Deck struct {
	// ID is the SHA256 of the deck's own serialized description,
	// computed when loading the deck file.
	ID string

	// Bouncer is the bouncer address for this deck.
	Bouncer string

	// NoCollector suppresses collector resolution for this deck.
	NoCollector bool

	// RequiresTor records whether running this deck requires tor.
	RequiresTor bool

	config  *Config
	loaders []NetTestLoader
}

// New creates a new empty deck with the given configuration.
func New(config *Config) *Deck {
	return &Deck{
		Bouncer:     config.Bouncer,
		NoCollector: config.NoCollector,
		config:      config,
	}
}

// NetTests returns the loaders inserted into the deck.
func (d *Deck) NetTests() []NetTestLoader {
	return d.loaders
}

// LoadFile loads the deck description at path. The deck ID is the
// SHA256 digest of the raw file contents. Entries referencing net
// tests the factory does not know about are skipped.
func (d *Deck) LoadFile(path string, factory LoaderFactory) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(err, "reading deck file")
	}
	d.ID = fmt.Sprintf("%x", sha256.Sum256(data))
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return pkgerrors.Wrap(err, "parsing deck file")
	}
	for idx := range entries {
		entry := &entries[idx]
		loader, err := factory.NewLoader(entry)
		if errors.Is(err, ErrNetTestNotFound) {
			d.config.Logger.Warnf("deck: could not find %s", entry.Options.TestFile)
			d.config.Logger.Info("Skipping...")
			continue
		}
		if err != nil {
			return err
		}
		if entry.Options.Collector != "" {
			loader.SetCollector(entry.Options.Collector)
		}
		if err := d.Insert(loader); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds a net test loader to this deck, enforcing the
// collector security policy. A test missing a helper is acceptable
// only when the deck has a bouncer to resolve it, in which case the
// deck requires tor because the bouncer may assign onion services.
func (d *Deck) Insert(loader NetTestLoader) error {
	if err := loader.CheckOptions(); err != nil {
		if !errors.Is(err, ErrMissingTestHelper) {
			return err
		}
		if d.Bouncer == "" {
			return err
		}
		d.RequiresTor = true
	} else if loader.RequiresTor() {
		d.RequiresTor = true
	}
	collector := loader.Collector()
	switch {
	case strings.HasPrefix(collector, "https://"):
		if !tlsSupported() {
			return ErrHTTPSCollectorUnsupported
		}
	case strings.HasPrefix(collector, "http://"):
		if !d.config.InsecureCollector {
			return ErrInsecureCollector
		}
	}
	d.loaders = append(d.loaders, loader)
	return nil
}
