// Package resources implements the on-disk cache of downloadable
// test inputs and test decks. Entries are content addressable: the
// payload for hash H lives at {dir}/{H}, its JSON descriptor at
// {dir}/{H}.desc, and the payload is only trusted when its SHA256
// digest equals H. A payload failing verification is treated as not
// cached even when the file exists.
package resources

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/irl/ooni-probe/internal/runtimex"
	"github.com/rogpeppe/go-internal/lockedfile"
)

var (
	// ErrChecksumMismatch indicates that the cached payload digest
	// differs from the entry ID.
	ErrChecksumMismatch = errors.New("resources: checksum mismatch")

	// ErrNoDescriptor indicates that we attempted to save an entry
	// that has no in-memory descriptor.
	ErrNoDescriptor = errors.New("resources: no descriptor loaded")
)

// Descriptor describes a cached resource. This is the JSON document
// stored at {hash}.desc and served by the collector.
type Descriptor struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// InputFile is a content addressable cache entry for a test input.
type InputFile struct {
	// ID is the content hash identifying this entry.
	ID string

	// CachedFile is the path of the cached payload.
	CachedFile string

	// CachedDescriptor is the path of the cached descriptor.
	CachedDescriptor string

	// Descriptor is the in-memory descriptor, nil until loaded
	// from the cache or from the network.
	Descriptor *Descriptor
}

// NewInputFile creates a cache entry for the given content hash
// rooted in the given cache directory. Only the entry ID is
// populated: descriptor and payload state come from the cache
// predicates and from explicit loads.
func NewInputFile(inputHash, baseDir string) *InputFile {
	cachePath := filepath.Join(baseDir, inputHash)
	return &InputFile{
		ID:               inputHash,
		CachedFile:       cachePath,
		CachedDescriptor: cachePath + ".desc",
	}
}

// DescriptorCached returns whether a parsable descriptor for this
// entry is in the cache, loading it into memory as a side effect.
func (f *InputFile) DescriptorCached() bool {
	data, err := lockedfile.Read(f.CachedDescriptor)
	if err != nil {
		return false
	}
	var descriptor Descriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return false
	}
	f.Descriptor = &descriptor
	return true
}

// FileCached returns whether the payload is in the cache and passes
// verification.
func (f *InputFile) FileCached() bool {
	if _, err := os.Stat(f.CachedFile); err != nil {
		return false
	}
	return f.Verify() == nil
}

// LoadDescriptor stores descriptor as this entry's in-memory
// descriptor, forcing its ID to the entry ID.
func (f *InputFile) LoadDescriptor(descriptor *Descriptor) {
	loaded := *descriptor
	loaded.ID = f.ID
	f.Descriptor = &loaded
}

// SaveDescriptor writes the in-memory descriptor into the cache,
// creating the cache directory if needed.
func (f *InputFile) SaveDescriptor() error {
	if f.Descriptor == nil {
		return ErrNoDescriptor
	}
	data, err := json.Marshal(f.Descriptor)
	runtimex.PanicOnError(err, "json.Marshal failed")
	if err := os.MkdirAll(filepath.Dir(f.CachedDescriptor), 0700); err != nil {
		return err
	}
	return lockedfile.Write(f.CachedDescriptor, bytes.NewReader(data), 0600)
}

// Verify checks that the SHA256 digest of the cached payload equals
// the entry ID.
func (f *InputFile) Verify() error {
	data, err := os.ReadFile(f.CachedFile)
	if err != nil {
		return err
	}
	digest := fmt.Sprintf("%x", sha256.Sum256(data))
	if digest != f.ID {
		return fmt.Errorf("%w: got %s, expected %s", ErrChecksumMismatch, digest, f.ID)
	}
	return nil
}

// Deck is a content addressable cache entry for a test deck. Decks
// cache exactly like input files, just in another directory.
type Deck struct {
	InputFile
}

// NewDeck creates a deck cache entry for the given content hash
// rooted in the given cache directory.
func NewDeck(deckHash, baseDir string) *Deck {
	return &Deck{*NewInputFile(deckHash, baseDir)}
}
