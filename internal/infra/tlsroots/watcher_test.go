package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/tokgate/internal/telemetry/logger"
)

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.cert.Load() == nil {
		t.Error("NewWatcher() did not load initial certificate")
	}
}

func TestNewWatcher_InvalidCert(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	// Create invalid cert/key files
	os.WriteFile(certFile, []byte("invalid"), 0644)
	os.WriteFile(keyFile, []byte("invalid"), 0600)

	_, err := NewWatcher(certFile, keyFile)
	if err == nil {
		t.Error("NewWatcher() expected error for invalid certificate")
	}
}

func TestNewWatcher_NonexistentFiles(t *testing.T) {
	_, err := NewWatcher("/nonexistent/cert.pem", "/nonexistent/key.pem")
	if err == nil {
		t.Error("NewWatcher() expected error for nonexistent files")
	}
}

func TestWatcher_GetCertificate(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	cert, err := w.GetCertificate(nil)
	if err != nil {
		t.Errorf("GetCertificate() error = %v", err)
	}
	if cert == nil {
		t.Error("GetCertificate() returned nil")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile,
		WithLogger(logger.Discard()),
		WithDebounce(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	// Stop should not block and may be repeated
	w.Stop()
	w.Stop()
}

func waitForReloads(t *testing.T, w *Watcher, n uint64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for w.Reloads() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Reloads() = %d, want %d", w.Reloads(), n)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	initial, _ := w.GetCertificate(nil)

	w.StartAsync()
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	generateWatcherTestCert(t, certFile, keyFile)
	waitForReloads(t, w, 2)

	current, _ := w.GetCertificate(nil)
	if current == initial {
		t.Fatal("certificate was not replaced")
	}
	if string(current.Certificate[0]) == string(initial.Certificate[0]) {
		t.Error("reloaded certificate has the old contents")
	}
}

func TestWatcher_FailedReloadKeepsCertificate(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	initial, _ := w.GetCertificate(nil)

	w.StartAsync()
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(certFile, []byte("truncated"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if w.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", w.Reloads())
	}
	if current, _ := w.GetCertificate(nil); current != initial {
		t.Error("a failed reload replaced the certificate")
	}
}

func TestWatcher_Options(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	log := logger.Discard()

	w, err := NewWatcher(certFile, keyFile,
		WithLogger(log),
		WithDebounce(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.logger != log {
		t.Error("WithLogger() option not applied")
	}
	if w.debounce != 200*time.Millisecond {
		t.Errorf("WithDebounce() option not applied, got %v", w.debounce)
	}
}

func TestWatcher_TLSConfig(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.crt")
	keyFile := filepath.Join(tmpDir, "server.key")

	generateWatcherTestCert(t, certFile, keyFile)

	w, err := NewWatcher(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	tlsConfig := w.TLSConfig()
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %#x, want TLS 1.3", tlsConfig.MinVersion)
	}

	cert, err := tlsConfig.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Errorf("GetCertificate() error = %v", err)
	}
	if cert == nil {
		t.Error("GetCertificate() returned nil")
	}
}

// generateWatcherTestCert generates a self-signed certificate and key pair for testing.
func generateWatcherTestCert(t *testing.T, certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	serialNumber, _ := rand.Int(rand.Reader, big.NewInt(1000000))

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "test.local",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "test.local"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}

	// Write cert
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("WriteFile(cert) error = %v", err)
	}

	// Write key
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: keyDER,
	})
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("WriteFile(key) error = %v", err)
	}
}
