package broker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

var tlsSchemes = []string{"ssl://", "tls://", "mqtts://", "rediss://"}

// NeedsTLS checks if TLS configuration is needed
func NeedsTLS(c Config) bool {
	for _, scheme := range tlsSchemes {
		if strings.HasPrefix(c.Server, scheme) {
			return true
		}
	}
	return c.TLSCertFile != "" ||
		c.TLSCAFile != "" ||
		c.TLSInsecureSkipVerify
}

// TLSConfig creates the TLS configuration, or nil when none is needed
func TLSConfig(c Config) (*tls.Config, error) {
	if !NeedsTLS(c) {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}

	// Load client certificate if provided
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if c.TLSCAFile != "" {
		caCert, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// ValidateTLS checks that configured certificate files are usable
func ValidateTLS(c Config) error {
	if (c.TLSCertFile != "" && c.TLSKeyFile == "") ||
		(c.TLSCertFile == "" && c.TLSKeyFile != "") {
		return fmt.Errorf("both tls_cert_file and tls_key_file must be specified together")
	}

	files := []struct {
		kind string
		path string
	}{
		{"certificate", c.TLSCertFile},
		{"key", c.TLSKeyFile},
		{"CA", c.TLSCAFile},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			return fmt.Errorf("TLS %s file not found: %s", f.kind, f.path)
		}
	}

	return nil
}
