package backendclient

//
// Endpoint classification and base address normalization
//

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// The endpoint types we support.
const (
	// TypeOnion is an onion service reached through tor.
	TypeOnion = "onion"

	// TypeHTTP is a plaintext backend. Disallowed unless the
	// insecure_backend setting is true.
	TypeHTTP = "http"

	// TypeHTTPS is a backend reached using TLS.
	TypeHTTPS = "https"

	// TypeCloudfront is a domain fronted backend: we connect to the
	// front and put the real hostname inside the Host header.
	TypeCloudfront = "cloudfront"
)

// onionAddrRe matches legacy (16 char) and v3 (56 char) onion
// addresses, with an optional http, https, or httpo scheme.
var onionAddrRe = regexp.MustCompile(
	`^((httpo|https?)://)?[a-z2-7]{16}([a-z2-7]{40})?\.onion(:\d+)?/?$`)

// IsOnionAddress returns whether address looks like an onion service
// address, possibly prefixed by a scheme.
func IsOnionAddress(address string) bool {
	return onionAddrRe.MatchString(address)
}

// Classify determines the endpoint type for the given address. When
// override is not empty we use it, after checking that it names a type
// we know about and that it is consistent with the address. Otherwise
// we guess the type from the address shape.
func Classify(address, override string) (string, error) {
	switch override {
	case "":
		// fallthrough to guessing below
	case TypeOnion:
		if !IsOnionAddress(address) {
			return "", fmt.Errorf("%w: %s is not an onion address", ErrInvalidAddress, address)
		}
		return TypeOnion, nil
	case TypeHTTP, TypeHTTPS, TypeCloudfront:
		return override, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, override)
	}
	if address == "" {
		return "", ErrInvalidAddress
	}
	switch {
	case IsOnionAddress(address):
		return TypeOnion, nil
	case strings.HasPrefix(address, "https://"):
		return TypeHTTPS, nil
	case strings.HasPrefix(address, "http://"):
		return TypeHTTP, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
}

// NormalizeBaseURL reduces address to scheme and host only, with the
// scheme implied by the endpoint type. Onion addresses keep their own
// scheme unless it is httpo, a legacy alias for http. Normalizing an
// already normalized address returns it unchanged.
func NormalizeBaseURL(address, endpointType string) (string, error) {
	if !strings.Contains(address, "://") {
		// bare onion addresses and override-forced types lack a scheme
		address = "http://" + address
	}
	parsed, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, err.Error())
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	switch endpointType {
	case TypeOnion:
		if parsed.Scheme == "http" || parsed.Scheme == "httpo" {
			return "http://" + parsed.Host, nil
		}
		return parsed.Scheme + "://" + parsed.Host, nil
	case TypeHTTP:
		return "http://" + parsed.Host, nil
	case TypeHTTPS, TypeCloudfront:
		return "https://" + parsed.Host, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, endpointType)
	}
}
