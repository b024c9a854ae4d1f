package probeservices

//
// bouncer.go - POST /bouncer/net-tests and /bouncer/test-helpers
//

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCouldNotFindTestCollector means the bouncer failed to give
	// us collector assignments for the tests we need to run.
	ErrCouldNotFindTestCollector = errors.New("probeservices: could not find a test collector")

	// ErrCouldNotFindTestHelper means the bouncer failed to give us
	// usable test helper addresses. An empty successful response
	// counts as a failed lookup.
	ErrCouldNotFindTestHelper = errors.New("probeservices: could not find a test helper")
)

// RequiredNettest describes a net test for which we require a
// collector and possibly test helpers.
type RequiredNettest struct {
	// Name is the test name.
	Name string `json:"name"`

	// Version is the test version.
	Version string `json:"version"`

	// TestHelpers lists the names of the helpers the test needs.
	TestHelpers []string `json:"test-helpers"`

	// InputHashes lists the hashes of the inputs the test uses.
	InputHashes []string `json:"input-hashes"`
}

// collectorLookupRequest is the request body for /bouncer/net-tests.
type collectorLookupRequest struct {
	NetTests []RequiredNettest `json:"net-tests"`
}

// NettestAssignment is the assignment the bouncer returns for a
// single required net test.
type NettestAssignment struct {
	// Name is the test name.
	Name string `json:"name"`

	// Version is the test version.
	Version string `json:"version"`

	// InputHashes is the input hash set the assignment is for. An
	// assignment only applies to a required test whose input hash
	// set is exactly this one.
	InputHashes []string `json:"input-hashes"`

	// Collector is the assigned collector address.
	Collector string `json:"collector"`

	// TestHelpers maps helper names to helper addresses.
	TestHelpers map[string]string `json:"test-helpers"`
}

// CollectorLookupResult is the response body of /bouncer/net-tests.
type CollectorLookupResult struct {
	NetTests []NettestAssignment `json:"net-tests"`
}

// LookupTestCollector asks the bouncer for collector and test helper
// assignments covering the given required net tests.
func (c *Bouncer) LookupTestCollector(
	ctx context.Context, nettests []RequiredNettest) (*CollectorLookupResult, error) {
	request := &collectorLookupRequest{NetTests: nettests}
	var result CollectorLookupResult
	if err := c.Conn.Query(ctx, "POST", "/bouncer/net-tests", request, &result); err != nil {
		c.Conn.Logger().Warnf("probeservices: collector lookup failed: %s", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrCouldNotFindTestCollector, err.Error())
	}
	return &result, nil
}

// helpersLookupRequest is the request body for /bouncer/test-helpers.
type helpersLookupRequest struct {
	TestHelpers []string `json:"test-helpers"`
}

// TestHelperInfo describes a test helper returned by the bouncer. The
// special "default" entry carries the default collector to use for
// tests that need no helper.
type TestHelperInfo struct {
	// Address is the helper address.
	Address string `json:"address"`

	// Collector is the collector associated with the helper.
	Collector string `json:"collector"`
}

// LookupTestHelpers asks the bouncer for the addresses of the test
// helpers with the given names.
func (c *Bouncer) LookupTestHelpers(
	ctx context.Context, names []string) (map[string]TestHelperInfo, error) {
	request := &helpersLookupRequest{TestHelpers: names}
	var result map[string]TestHelperInfo
	if err := c.Conn.Query(ctx, "POST", "/bouncer/test-helpers", request, &result); err != nil {
		c.Conn.Logger().Warnf("probeservices: test helpers lookup failed: %s", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrCouldNotFindTestHelper, err.Error())
	}
	if len(result) == 0 {
		return nil, ErrCouldNotFindTestHelper
	}
	return result, nil
}
