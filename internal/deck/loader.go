package deck

//
// The interface between decks and net test definitions. Test
// definitions live elsewhere: this package only needs the narrow
// view below, which also avoids a mutual dependency between deck
// parsing and test loading.
//

import "errors"

var (
	// ErrMissingTestHelper indicates that a net test requires a test
	// helper that is not available locally.
	ErrMissingTestHelper = errors.New("deck: missing test helper")

	// ErrNetTestNotFound indicates that a deck entry references a
	// net test we don't know about. Factories return this to make
	// the deck loader skip the entry.
	ErrNetTestNotFound = errors.New("deck: net test not found")
)

// InputFileRef references a remote input file required by a net test.
type InputFileRef struct {
	// Hash is the content hash of the input.
	Hash string

	// URL is the remote location of the input. An empty URL means
	// the input needs no fetching.
	URL string

	// Address is the backend address serving the input.
	Address string

	// Key is the local option that receives the cached file path.
	Key string
}

// TestHelperRef names a test helper a net test requires and the
// local option that receives its address.
type TestHelperRef struct {
	// Option is the local option name.
	Option string

	// Name is the helper name known to the bouncer.
	Name string
}

// NetTestLoader is how this package sees a loaded net test
// definition.
type NetTestLoader interface {
	// TestName returns the test name.
	TestName() string

	// TestVersion returns the test version.
	TestVersion() string

	// Collector returns the collector address, or an empty string
	// when no collector has been assigned yet.
	Collector() string

	// SetCollector assigns the collector address.
	SetCollector(address string)

	// InputFiles returns the inputs the test requires.
	InputFiles() []*InputFileRef

	// SetOption sets a local test option.
	SetOption(key, value string)

	// MissingTestHelpers returns the helpers the test requires
	// and cannot resolve locally.
	MissingTestHelpers() []TestHelperRef

	// SetTestHelper records the address of a resolved helper.
	SetTestHelper(option, address string)

	// RequiresTor returns whether the test itself requires tor.
	RequiresTor() bool

	// CheckOptions fails with ErrMissingTestHelper when the test
	// requires helpers that are not available locally.
	CheckOptions() error
}

// LoaderFactory builds a NetTestLoader out of a deck entry.
type LoaderFactory interface {
	// NewLoader builds a loader for the given entry. Returning
	// ErrNetTestNotFound makes the deck loader skip the entry.
	NewLoader(entry *Entry) (NetTestLoader, error)
}
