package conn

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// TLSConfig contains options for configuring a TLS connection to the
// server.
type TLSConfig struct {
	tls.Config
}

// NewTLSConfig creates a new TLSConfig.
func NewTLSConfig() *TLSConfig {
	return &TLSConfig{}
}

// MakeConfig returns a fresh tls.Config usable for a single dial.
func (c *TLSConfig) MakeConfig() *tls.Config {
	return c.Config.Clone()
}

// SetInsecure sets whether the client should verify the server's
// certificate chain and hostname.
func (c *TLSConfig) SetInsecure(allow bool) {
	c.InsecureSkipVerify = allow
}

// SetServerName overrides the hostname used to verify the server's
// certificate.
func (c *TLSConfig) SetServerName(name string) {
	c.ServerName = name
}

// AddCaCertFromFile adds a root CA certificate to the configuration
// given a path to the containing file.
func (c *TLSConfig) AddCaCertFromFile(caFile string) error {
	certBytes, err := loadCert(caFile)
	if err != nil {
		return err
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return err
	}

	if c.RootCAs == nil {
		c.RootCAs = x509.NewCertPool()
	}

	c.RootCAs.AddCert(cert)

	return nil
}

// SetClientCertFromFile loads a client certificate and its private key
// from a combined PEM file, enabling certificate-based (X.509) client
// authentication. It returns the RFC 2253 subject name the server will
// know the client as.
func (c *TLSConfig) SetClientCertFromFile(clientFile string) (string, error) {
	data, err := os.ReadFile(clientFile)
	if err != nil {
		return "", err
	}

	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return "", err
	}

	c.Certificates = append(c.Certificates, cert)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return "", err
	}

	return leaf.Subject.String(), nil
}

func loadCert(pemFile string) ([]byte, error) {
	data, err := os.ReadFile(pemFile)
	if err != nil {
		return nil, err
	}

	var certBlock *pem.Block

	for certBlock == nil {
		if len(data) == 0 {
			return nil, fmt.Errorf("%s must have a CERTIFICATE section", pemFile)
		}

		block, rest := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("invalid PEM file: %s", pemFile)
		}

		if block.Type == "CERTIFICATE" {
			certBlock = block
		}

		data = rest
	}

	return certBlock.Bytes, nil
}
