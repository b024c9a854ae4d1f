package probeservices

//
// collector.go - reports, cached inputs, cached decks
//

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/irl/ooni-probe/internal/httpx"
	"github.com/irl/ooni-probe/internal/resources"
)

// IsReachable checks whether the collector is reachable. There is no
// dedicated endpoint, so we request a path that cannot exist: we
// should never get an acceptable response for an invalid path, and a
// 404 proves there is a working collector on the other side.
func (c *Collector) IsReachable(ctx context.Context) bool {
	err := c.Conn.Query(ctx, "GET", "/invalidpath", nil, nil)
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 404
	}
	return false
}

// GetInput returns the cache entry for the input with the given
// hash, fetching and caching its descriptor when not already cached.
// On fetch failure the cache is left unpopulated so that the caller
// may retry later.
func (c *Collector) GetInput(ctx context.Context, inputHash string) (*resources.InputFile, error) {
	inputFile := resources.NewInputFile(inputHash, c.InputsDir)
	if inputFile.DescriptorCached() {
		return inputFile, nil
	}
	var descriptor resources.Descriptor
	if err := c.Conn.Query(ctx, "GET", "/input/"+inputHash, nil, &descriptor); err != nil {
		c.Conn.Logger().Warnf(
			"probeservices: failed to get descriptor for input %s: %s", inputHash, err.Error())
		return nil, err
	}
	inputFile.LoadDescriptor(&descriptor)
	if err := inputFile.SaveDescriptor(); err != nil {
		return nil, err
	}
	return inputFile, nil
}

// GetInputList returns the descriptors of the inputs the collector
// can serve.
func (c *Collector) GetInputList(ctx context.Context) ([]resources.Descriptor, error) {
	var result []resources.Descriptor
	if err := c.Conn.Query(ctx, "GET", "/input", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadInput returns the cache entry for the input with the given
// hash after making sure its payload is cached and verified. On
// failure the cache is left unpopulated so that the caller may retry.
func (c *Collector) DownloadInput(ctx context.Context, inputHash string) (*resources.InputFile, error) {
	inputFile := resources.NewInputFile(inputHash, c.InputsDir)
	if inputFile.FileCached() {
		return inputFile, nil
	}
	if err := c.Conn.Download(ctx, "/input/"+inputHash+"/file", inputFile.CachedFile); err != nil {
		c.Conn.Logger().Warnf(
			"probeservices: failed to download input file %s: %s", inputHash, err.Error())
		return nil, err
	}
	if err := inputFile.Verify(); err != nil {
		return nil, err
	}
	return inputFile, nil
}

// InputPolicyEntry is an entry of the input policy document.
type InputPolicyEntry struct {
	ID string `json:"id"`
}

// GetInputPolicy returns the collector's input policy.
func (c *Collector) GetInputPolicy(ctx context.Context) ([]InputPolicyEntry, error) {
	var result []InputPolicyEntry
	if err := c.Conn.Query(ctx, "GET", "/policy/input", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// NettestPolicyEntry is an entry of the nettest policy document.
type NettestPolicyEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetNettestPolicy returns the collector's nettest policy.
func (c *Collector) GetNettestPolicy(ctx context.Context) ([]NettestPolicyEntry, error) {
	var result []NettestPolicyEntry
	if err := c.Conn.Query(ctx, "GET", "/policy/nettest", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetDeckList returns the descriptors of the decks the collector
// can serve.
func (c *Collector) GetDeckList(ctx context.Context) ([]resources.Descriptor, error) {
	var result []resources.Descriptor
	if err := c.Conn.Query(ctx, "GET", "/deck", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetDeck is like GetInput for test decks.
func (c *Collector) GetDeck(ctx context.Context, deckHash string) (*resources.Deck, error) {
	deck := resources.NewDeck(deckHash, c.DecksDir)
	if deck.DescriptorCached() {
		return deck, nil
	}
	var descriptor resources.Descriptor
	if err := c.Conn.Query(ctx, "GET", "/deck/"+deckHash, nil, &descriptor); err != nil {
		c.Conn.Logger().Warnf(
			"probeservices: failed to get descriptor for deck %s: %s", deckHash, err.Error())
		return nil, err
	}
	deck.LoadDescriptor(&descriptor)
	if err := deck.SaveDescriptor(); err != nil {
		return nil, err
	}
	return deck, nil
}

// DownloadDeck is like DownloadInput for test decks.
func (c *Collector) DownloadDeck(ctx context.Context, deckHash string) (*resources.Deck, error) {
	deck := resources.NewDeck(deckHash, c.DecksDir)
	if deck.FileCached() {
		return deck, nil
	}
	if err := c.Conn.Download(ctx, "/deck/"+deckHash+"/file", deck.CachedFile); err != nil {
		c.Conn.Logger().Warnf(
			"probeservices: failed to download deck %s: %s", deckHash, err.Error())
		return nil, err
	}
	if err := deck.Verify(); err != nil {
		return nil, err
	}
	return deck, nil
}

// EnvironmentPrefix is the prefix of the environment variables whose
// lower-cased names are merged into report creation requests. Setting
// e.g. PROBE_ASN overrides the probe_asn field.
const EnvironmentPrefix = "PROBE_"

// ReportTemplate contains the metadata required to create a report.
type ReportTemplate struct {
	SoftwareName      string   `json:"software_name"`
	SoftwareVersion   string   `json:"software_version"`
	ProbeASN          string   `json:"probe_asn"`
	ProbeCC           string   `json:"probe_cc"`
	TestName          string   `json:"test_name"`
	TestVersion       string   `json:"test_version"`
	TestStartTime     string   `json:"test_start_time"`
	InputHashes       []string `json:"input_hashes"`
	DataFormatVersion string   `json:"data_format_version"`
}

// newReportRequest merges the template with the overrides found in
// environ, which has the os.Environ format.
func newReportRequest(tmpl ReportTemplate, environ []string) map[string]interface{} {
	request := map[string]interface{}{
		"software_name":       tmpl.SoftwareName,
		"software_version":    tmpl.SoftwareVersion,
		"probe_asn":           tmpl.ProbeASN,
		"probe_cc":            tmpl.ProbeCC,
		"test_name":           tmpl.TestName,
		"test_version":        tmpl.TestVersion,
		"test_start_time":     tmpl.TestStartTime,
		"input_hashes":        tmpl.InputHashes,
		"data_format_version": tmpl.DataFormatVersion,
		"format":              "json",
	}
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found || !strings.HasPrefix(key, EnvironmentPrefix) {
			continue
		}
		request[strings.ToLower(key)] = value
	}
	return request
}

// CreateReportResult is the response to a report creation request.
type CreateReportResult struct {
	// ReportID is the identifier of the newly created report.
	ReportID string `json:"report_id"`

	// BackendVersion is the version of the collector.
	BackendVersion string `json:"backend_version"`

	// SupportedFormats lists the entry formats the collector accepts.
	SupportedFormats []string `json:"supported_formats"`
}

// CreateReport opens a new report on the collector.
func (c *Collector) CreateReport(
	ctx context.Context, tmpl ReportTemplate) (*CreateReportResult, error) {
	request := newReportRequest(tmpl, os.Environ())
	var result CreateReportResult
	if err := c.Conn.Query(ctx, "POST", "/report", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// updateReportRequest is the request body for updating a report.
type updateReportRequest struct {
	Format  string      `json:"format"`
	Content interface{} `json:"content"`
}

// UpdateReport submits an entry with the given serialization format
// to the report with the given ID.
func (c *Collector) UpdateReport(
	ctx context.Context, reportID, format string, content interface{}) error {
	request := &updateReportRequest{Format: format, Content: content}
	return c.Conn.Query(ctx, "POST", "/report/"+reportID, request, nil)
}

// CloseReport closes the report with the given ID.
func (c *Collector) CloseReport(ctx context.Context, reportID string) error {
	return c.Conn.Query(ctx, "POST", "/report/"+reportID+"/close", nil, nil)
}
