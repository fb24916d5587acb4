package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoCertsFound is returned when a source holds no usable certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// certExts are the file extensions AddCertDir reads.
var certExts = map[string]bool{".pem": true, ".crt": true, ".cer": true, ".der": true}

// Pool is a set of trusted roots for verifying a tokgate server.
type Pool struct {
	certPool *x509.CertPool
	added    int
}

// NewPool starts from the system roots, or from an empty pool where the
// platform has none.
func NewPool() *Pool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	return &Pool{certPool: pool}
}

// NewEmptyPool creates a pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// LoadPool builds the pool a client should trust for path:
//
//   - "": the system roots
//   - a directory: every certificate file in it, no system roots
//   - a file: its PEM blocks or single DER certificate, no system roots
//
// A file or directory that yields no certificate is an error.
func LoadPool(path string) (*Pool, error) {
	if path == "" {
		return NewPool(), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}

	p := NewEmptyPool()
	if info.IsDir() {
		err = p.AddCertDir(path)
	} else {
		err = p.AddCertFile(path)
	}
	if err != nil {
		return nil, err
	}
	if p.added == 0 {
		return nil, fmt.Errorf("tlsroots: %s: %w", path, ErrNoCertsFound)
	}
	return p, nil
}

// AddCertFile adds certificates from a file holding either PEM blocks or a
// single DER-encoded certificate.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}

	err = p.AddCertPEM(data)
	if errors.Is(err, ErrNoCertsFound) && p.AddCertDER(data) == nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tlsroots: %s: %w", path, err)
	}
	return nil
}

// AddCertPEM adds every CERTIFICATE block of pemData. Other block types are
// skipped.
func (p *Pool) AddCertPEM(pemData []byte) error {
	found := 0
	for {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if err := p.AddCertDER(block.Bytes); err != nil {
			return err
		}
		found++
	}
	if found == 0 {
		return ErrNoCertsFound
	}
	return nil
}

// AddCertDER adds one DER-encoded certificate.
func (p *Pool) AddCertDER(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("tlsroots: parse certificate: %w", err)
	}
	p.certPool.AddCert(cert)
	p.added++
	return nil
}

// AddCertDir adds the certificate files of dir. Files with other extensions
// and files that fail to parse are skipped.
func (p *Pool) AddCertDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !certExts[filepath.Ext(entry.Name())] {
			continue
		}
		_ = p.AddCertFile(filepath.Join(dir, entry.Name()))
	}
	return nil
}

// Added returns the number of certificates added beyond the system roots.
func (p *Pool) Added() int {
	return p.added
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// ClientTLSConfig returns a TLS 1.3 client config trusting this pool and
// verifying the server as serverName.
func (p *Pool) ClientTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		RootCAs:    p.certPool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS13,
	}
}
