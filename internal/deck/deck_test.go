package deck

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
)

// fakeLoader implements NetTestLoader for testing.
type fakeLoader struct {
	name           string
	version        string
	collector      string
	inputs         []*InputFileRef
	missingHelpers []TestHelperRef
	options        map[string]string
	helpers        map[string]string
	requiresTor    bool
	checkErr       error
}

func newFakeLoader(name, version string) *fakeLoader {
	return &fakeLoader{
		name:    name,
		version: version,
		options: make(map[string]string),
		helpers: make(map[string]string),
	}
}

func (l *fakeLoader) TestName() string    { return l.name }
func (l *fakeLoader) TestVersion() string { return l.version }
func (l *fakeLoader) Collector() string   { return l.collector }

func (l *fakeLoader) SetCollector(address string) {
	l.collector = address
}

func (l *fakeLoader) InputFiles() []*InputFileRef {
	return l.inputs
}

func (l *fakeLoader) SetOption(key, value string) {
	l.options[key] = value
}

func (l *fakeLoader) MissingTestHelpers() []TestHelperRef {
	return l.missingHelpers
}

func (l *fakeLoader) SetTestHelper(option, address string) {
	l.helpers[option] = address
}

func (l *fakeLoader) RequiresTor() bool {
	return l.requiresTor
}

func (l *fakeLoader) CheckOptions() error {
	return l.checkErr
}

func newConfigForTesting(t *testing.T) *Config {
	return &Config{
		InputsDir: t.TempDir(),
		DecksDir:  t.TempDir(),
		Logger:    log.Log,
	}
}

func TestInsert(t *testing.T) {
	t.Run("for a plain test", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		if err := deck.Insert(newFakeLoader("dummy", "0.0.1")); err != nil {
			t.Fatal(err)
		}
		if len(deck.NetTests()) != 1 {
			t.Fatal("loader not inserted")
		}
		if deck.RequiresTor {
			t.Fatal("deck should not require tor")
		}
	})

	t.Run("for a test requiring tor", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("vanilla_tor", "0.0.1")
		loader.requiresTor = true
		if err := deck.Insert(loader); err != nil {
			t.Fatal(err)
		}
		if !deck.RequiresTor {
			t.Fatal("deck should require tor")
		}
	})

	t.Run("missing helper without a bouncer", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("web_connectivity", "0.0.1")
		loader.checkErr = ErrMissingTestHelper
		if err := deck.Insert(loader); !errors.Is(err, ErrMissingTestHelper) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("missing helper with a bouncer", func(t *testing.T) {
		config := newConfigForTesting(t)
		config.Bouncer = "https://bouncer.ooni.io"
		deck := New(config)
		loader := newFakeLoader("web_connectivity", "0.0.1")
		loader.checkErr = ErrMissingTestHelper
		if err := deck.Insert(loader); err != nil {
			t.Fatal(err)
		}
		// the bouncer may assign onion services
		if !deck.RequiresTor {
			t.Fatal("deck should require tor")
		}
	})

	t.Run("broken options", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("dummy", "0.0.1")
		loader.checkErr = errors.New("mocked error")
		if err := deck.Insert(loader); err == nil {
			t.Fatal("expected an error here")
		}
	})

	t.Run("https collector with a modern TLS stack", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("dummy", "0.0.1")
		loader.collector = "https://a.collector.ooni.io"
		if err := deck.Insert(loader); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("https collector with an old TLS stack", func(t *testing.T) {
		saved := tlsSupported
		tlsSupported = func() bool { return false }
		defer func() { tlsSupported = saved }()
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("dummy", "0.0.1")
		loader.collector = "https://a.collector.ooni.io"
		if err := deck.Insert(loader); !errors.Is(err, ErrHTTPSCollectorUnsupported) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("plaintext collector", func(t *testing.T) {
		deck := New(newConfigForTesting(t))
		loader := newFakeLoader("dummy", "0.0.1")
		loader.collector = "http://a.collector.ooni.io"
		if err := deck.Insert(loader); !errors.Is(err, ErrInsecureCollector) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("plaintext collector explicitly allowed", func(t *testing.T) {
		config := newConfigForTesting(t)
		config.InsecureCollector = true
		deck := New(config)
		loader := newFakeLoader("dummy", "0.0.1")
		loader.collector = "http://a.collector.ooni.io"
		if err := deck.Insert(loader); err != nil {
			t.Fatal(err)
		}
	})
}

// fakeFactory builds fake loaders for a fixed set of test names.
type fakeFactory struct {
	known map[string]*fakeLoader
}

func (f *fakeFactory) NewLoader(entry *Entry) (NetTestLoader, error) {
	loader, found := f.known[entry.Options.TestFile]
	if !found {
		return nil, ErrNetTestNotFound
	}
	return loader, nil
}

func TestLoadFile(t *testing.T) {
	content := []byte(`- options:
    test_file: manipulation/http_invalid_request_line
    subargs: ["-f", "something"]
    collector: https://a.collector.ooni.io
    annotations:
      platform: linux
- options:
    test_file: blocking/nonexistent
`)
	path := filepath.Join(t.TempDir(), "deck.yaml")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	factory := &fakeFactory{known: map[string]*fakeLoader{
		"manipulation/http_invalid_request_line": newFakeLoader(
			"http_invalid_request_line", "0.0.1"),
	}}
	deck := New(newConfigForTesting(t))
	if err := deck.LoadFile(path, factory); err != nil {
		t.Fatal(err)
	}
	if expect := fmt.Sprintf("%x", sha256.Sum256(content)); deck.ID != expect {
		t.Fatal("unexpected deck ID", deck.ID)
	}
	loaders := deck.NetTests()
	if len(loaders) != 1 {
		t.Fatal("the unknown test should have been skipped")
	}
	if loaders[0].Collector() != "https://a.collector.ooni.io" {
		t.Fatal("collector from the deck entry not honored")
	}
}

func TestLoadFileMissing(t *testing.T) {
	deck := New(newConfigForTesting(t))
	err := deck.LoadFile(filepath.Join(t.TempDir(), "nonexistent.yaml"), &fakeFactory{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("not the error we expected", err)
	}
}

func TestLoadFileNotYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.yaml")
	if err := os.WriteFile(path, []byte("{{{"), 0600); err != nil {
		t.Fatal(err)
	}
	deck := New(newConfigForTesting(t))
	if err := deck.LoadFile(path, &fakeFactory{}); err == nil {
		t.Fatal("expected an error here")
	}
}
