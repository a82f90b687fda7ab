// Package tlsutil builds client TLS configurations for wss:// engine
// endpoints from declarative settings.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/enginelink/errors"
)

// ClientConfig is the declarative TLS section of the engine configuration.
// The zero value means "use library defaults", which Load signals by
// returning a nil *tls.Config.
type ClientConfig struct {
	// CAFiles are PEM bundles trusted in addition to the system pool.
	CAFiles []string `yaml:"ca_files,omitempty"`
	// CertFile/KeyFile enable mutual TLS when both are set.
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	// MinVersion is "1.2" or "1.3"; empty defaults to 1.2.
	MinVersion string `yaml:"min_version,omitempty"`
	// InsecureSkipVerify disables server certificate verification. Only for
	// test rigs against self-signed engines.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

// IsZero reports whether no TLS customization was requested.
func (c ClientConfig) IsZero() bool {
	return len(c.CAFiles) == 0 && c.CertFile == "" && c.KeyFile == "" &&
		c.MinVersion == "" && !c.InsecureSkipVerify
}

// Load builds the tls.Config for dialing the engine. Returns nil when the
// settings are all defaults so callers can tell "nothing to apply" apart
// from an explicit configuration.
func Load(cfg ClientConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}

	minVersion, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		MinVersion:         minVersion,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if len(cfg.CAFiles) > 0 {
		rootCAs, err := x509.SystemCertPool()
		if err != nil {
			rootCAs = x509.NewCertPool()
		}
		for _, caFile := range cfg.CAFiles {
			caPEM, err := os.ReadFile(caFile)
			if err != nil {
				return nil, errors.Wrap(err, "TLSUtil", "Load", "read CA file "+caFile)
			}
			if !rootCAs.AppendCertsFromPEM(caPEM) {
				return nil, errors.Wrap(
					fmt.Errorf("no certificates in %s", caFile),
					"TLSUtil", "Load", "parse CA bundle")
			}
		}
		tlsConfig.RootCAs = rootCAs
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, fmt.Errorf("cert_file and key_file must be set together")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "TLSUtil", "Load", "load client keypair")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min_version %q (want 1.2 or 1.3)", v)
	}
}
