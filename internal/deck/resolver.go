package deck

//
// Resolution of inputs, collectors, and test helpers
//

import (
	"context"
	"fmt"

	"github.com/irl/ooni-probe/internal/probeservices"
)

// Setup fetches and verifies the inputs of every net test in the
// deck and, when the deck has a bouncer, resolves collector and test
// helper assignments. Setup is idempotent: inputs already cached and
// assignments already set are not touched again.
func (d *Deck) Setup(ctx context.Context) error {
	d.config.Logger.Info("Fetching required net test inputs...")
	for _, loader := range d.loaders {
		if err := d.fetchAndVerifyInputs(ctx, loader); err != nil {
			return err
		}
	}
	if d.Bouncer != "" {
		d.config.Logger.Info("Looking up collector and test helpers")
		if err := d.LookupCollector(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fetchAndVerifyInputs materializes the inputs of a single net test.
// Any download or verification failure aborts the whole deck setup.
func (d *Deck) fetchAndVerifyInputs(ctx context.Context, loader NetTestLoader) error {
	for _, ref := range loader.InputFiles() {
		if ref.URL == "" {
			continue
		}
		d.config.Logger.Debugf("deck: downloading %s", ref.URL)
		collector, err := d.config.collector(ref.Address)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnableToLoadDeckInput, err.Error())
		}
		inputFile, err := collector.DownloadInput(ctx, ref.Hash)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnableToLoadDeckInput, err.Error())
		}
		if err := inputFile.Verify(); err != nil {
			return fmt.Errorf("%w: %s", ErrUnableToLoadDeckInput, err.Error())
		}
		loader.SetOption(ref.Key, inputFile.CachedFile)
	}
	return nil
}

// requiredNettest builds the bouncer record for a loader.
func requiredNettest(loader NetTestLoader) probeservices.RequiredNettest {
	nettest := probeservices.RequiredNettest{
		Name:        loader.TestName(),
		Version:     loader.TestVersion(),
		TestHelpers: []string{},
		InputHashes: inputHashes(loader),
	}
	for _, helper := range loader.MissingTestHelpers() {
		nettest.TestHelpers = append(nettest.TestHelpers, helper.Name)
	}
	return nettest
}

func inputHashes(loader NetTestLoader) []string {
	hashes := []string{}
	for _, ref := range loader.InputFiles() {
		hashes = append(hashes, ref.Hash)
	}
	return hashes
}

// LookupCollector resolves collectors and test helpers for every net
// test in the deck with a single bouncer round trip. When no test
// needs a collector or a helper we don't touch the network at all. A
// test matched by no returned assignment is left unresolved rather
// than failing the lookup.
func (d *Deck) LookupCollector(ctx context.Context) error {
	required := []probeservices.RequiredNettest{}
	requiresHelpers, requiresCollector := false, false
	for _, loader := range d.loaders {
		if loader.Collector() == "" && !d.NoCollector {
			requiresCollector = true
		}
		if len(loader.MissingTestHelpers()) > 0 {
			requiresHelpers = true
		}
		required = append(required, requiredNettest(loader))
	}
	if !requiresHelpers && !requiresCollector {
		return nil
	}

	bouncer, err := d.config.bouncer(d.Bouncer)
	if err != nil {
		return err
	}
	d.config.Logger.Debugf("deck: looking up %d required net tests", len(required))
	response, err := bouncer.LookupTestCollector(ctx, required)
	if err != nil {
		return err
	}

	matchedAny := false
	for _, loader := range d.loaders {
		d.config.Logger.Infof(
			"Setting collector and test helpers for %s", loader.TestName())
		assignment := findAssignment(response.NetTests, loader)
		if assignment == nil {
			d.config.Logger.Warnf(
				"deck: no assignment matched %s %s", loader.TestName(), loader.TestVersion())
			continue
		}
		matchedAny = true
		for _, helper := range loader.MissingTestHelpers() {
			address, found := assignment.TestHelpers[helper.Name]
			if !found {
				continue
			}
			loader.SetOption(helper.Option, address)
			loader.SetTestHelper(helper.Option, address)
		}
		if loader.Collector() == "" {
			loader.SetCollector(assignment.Collector)
		}
	}
	if !matchedAny {
		d.config.Logger.Warn("deck: no assignment matched any required net test")
	}
	return nil
}

// findAssignment returns the assignment matching the loader, or nil.
// An assignment matches when the name is equal, the version is equal,
// and the input hash sets are exactly equal: neither a subset nor a
// superset will do. The (name, version, hash set) triple is expected
// to be unique, so the first match wins.
func findAssignment(
	assignments []probeservices.NettestAssignment,
	loader NetTestLoader) *probeservices.NettestAssignment {
	required := hashSet(inputHashes(loader))
	for idx := range assignments {
		assignment := &assignments[idx]
		if assignment.Name != loader.TestName() {
			continue
		}
		if assignment.Version != loader.TestVersion() {
			continue
		}
		if !sameSet(hashSet(assignment.InputHashes), required) {
			continue
		}
		return assignment
	}
	return nil
}

func hashSet(hashes []string) map[string]bool {
	set := make(map[string]bool, len(hashes))
	for _, hash := range hashes {
		set[hash] = true
	}
	return set
}

func sameSet(left, right map[string]bool) bool {
	if len(left) != len(right) {
		return false
	}
	for entry := range left {
		if !right[entry] {
			return false
		}
	}
	return true
}

// LookupTestHelpers is the alternate, per-helper-name resolution
// strategy: it resolves each missing helper by name and assigns the
// bouncer's designated default collector to tests that need no
// helper but still lack a collector. This exists alongside
// LookupCollector as an independent strategy, not a replacement.
func (d *Deck) LookupTestHelpers(ctx context.Context) error {
	requiredHelpers := []string{}
	needsCollector := make([]bool, len(d.loaders))
	anyNeedsCollector := false
	for idx, loader := range d.loaders {
		if loader.Collector() == "" && !d.NoCollector {
			needsCollector[idx] = true
			anyNeedsCollector = true
		}
		for _, helper := range loader.MissingTestHelpers() {
			requiredHelpers = append(requiredHelpers, helper.Name)
		}
	}
	if len(requiredHelpers) <= 0 && !anyNeedsCollector {
		return nil
	}

	bouncer, err := d.config.bouncer(d.Bouncer)
	if err != nil {
		return err
	}
	response, err := bouncer.LookupTestHelpers(ctx, requiredHelpers)
	if err != nil {
		return err
	}

	for idx, loader := range d.loaders {
		d.config.Logger.Infof(
			"Setting collector and test helpers for %s", loader.TestName())
		if len(loader.MissingTestHelpers()) == 0 && needsCollector[idx] {
			defaultInfo, found := response["default"]
			if !found || defaultInfo.Collector == "" {
				d.config.Logger.Warnf(
					"deck: no default collector for %s", loader.TestName())
				continue
			}
			d.config.Logger.Infof("Using the default collector: %s", defaultInfo.Collector)
			loader.SetCollector(defaultInfo.Collector)
			continue
		}
		for _, helper := range loader.MissingTestHelpers() {
			info, found := response[helper.Name]
			if !found {
				continue
			}
			d.config.Logger.Infof("Using this helper: %s", info.Address)
			loader.SetOption(helper.Option, info.Address)
			loader.SetTestHelper(helper.Option, info.Address)
			if needsCollector[idx] {
				loader.SetCollector(info.Collector)
			}
		}
	}
	return nil
}
