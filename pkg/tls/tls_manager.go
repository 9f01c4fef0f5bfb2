package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// Config holds the [TLS] settings.
type Config struct {
	Enabled      bool
	AutoCert     bool
	Domain       string
	Email        string
	CertDir      string
	RedirectHTTP bool
	CertFile     string
	KeyFile      string
	Port         string
	MinVersion   string
}

// ConfigFromSettings reads the [TLS] section.
func ConfigFromSettings() Config {
	return Config{
		Enabled:      configuration.GetBool("TLS", "enabled", false),
		AutoCert:     configuration.GetBool("TLS", "auto_cert", false),
		Domain:       configuration.GetString("TLS", "domain", ""),
		Email:        configuration.GetString("TLS", "email", ""),
		CertDir:      configuration.GetString("TLS", "cert_dir", "certs"),
		RedirectHTTP: configuration.GetBool("TLS", "redirect_http", true),
		CertFile:     configuration.GetString("TLS", "cert_file", ""),
		KeyFile:      configuration.GetString("TLS", "key_file", ""),
		Port:         configuration.GetString("TLS", "port", "443"),
		MinVersion:   configuration.GetString("TLS", "min_tls_version", "1.2"),
	}
}

// Manager handles certificates for the calculator server, either from files
// or from Let's Encrypt through autocert.
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager validates cfg and prepares the TLS configuration. A disabled
// config yields a manager whose TLSConfig is nil.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{config: cfg}

	if err := m.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}
	if !cfg.Enabled {
		return m, nil
	}

	minVersion, err := parseMinVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	if cfg.AutoCert {
		err = m.initializeAutoCert(minVersion)
	} else {
		err = m.initializeManualTLS(minVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("TLS initialization failed: %w", err)
	}
	return m, nil
}

func (m *Manager) validateConfig() error {
	if !m.config.Enabled {
		return nil
	}
	if m.config.AutoCert {
		if strings.TrimSpace(m.config.Domain) == "" {
			return fmt.Errorf("domain is required when auto_cert is enabled")
		}
		if strings.TrimSpace(m.config.Email) == "" {
			return fmt.Errorf("email is required when auto_cert is enabled")
		}
		if strings.Contains(m.config.Domain, "example.com") {
			logger.SecurityWarn("Using example domain - change this in production!")
		}
		return nil
	}
	if m.config.CertFile == "" || m.config.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required without auto_cert")
	}
	return nil
}

func parseMinVersion(v string) (uint16, error) {
	switch strings.TrimSpace(v) {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("unsupported min_tls_version %q", v)
}

func (m *Manager) initializeAutoCert(minVersion uint16) error {
	logger.SecurityInfo("Initializing Let's Encrypt for domain: %s", m.config.Domain)

	if err := os.MkdirAll(m.config.CertDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %w", err)
	}

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(m.config.CertDir),
		Prompt:     autocert.AcceptTOS,
		Email:      m.config.Email,
		HostPolicy: autocert.HostWhitelist(m.config.Domain, "www."+m.config.Domain),
	}

	cfg := m.autocertMgr.TLSConfig()
	cfg.MinVersion = minVersion
	getCertificate := cfg.GetCertificate
	cfg.GetCertificate = func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		if hello.ServerName == "" {
			logger.SecurityWarn("TLS handshake without SNI, using %s", m.config.Domain)
			hello.ServerName = m.config.Domain
		}
		cert, err := getCertificate(hello)
		if err != nil {
			logger.SecurityWarn("Failed to get certificate for %s: %v", hello.ServerName, err)
			return nil, err
		}
		return cert, nil
	}
	m.tlsConfig = cfg
	return nil
}

func (m *Manager) initializeManualTLS(minVersion uint16) error {
	logger.SecurityInfo("Initializing manual TLS with cert: %s, key: %s", m.config.CertFile, m.config.KeyFile)

	cert, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	m.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}
	return nil
}

// IsEnabled reports whether the server should listen with TLS.
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// TLSConfig is the configuration for the HTTPS listener, nil when disabled.
func (m *Manager) TLSConfig() *tls.Config {
	if !m.config.Enabled {
		return nil
	}
	return m.tlsConfig
}

// Addr is the HTTPS listen address.
func (m *Manager) Addr() string {
	return ":" + m.config.Port
}

// NeedsHTTPServer reports whether a plain HTTP listener is still needed, for
// ACME challenges or for redirects.
func (m *Manager) NeedsHTTPServer() bool {
	return m.config.Enabled && (m.config.AutoCert || m.config.RedirectHTTP)
}

// HTTPHandler serves the plain HTTP listener: ACME challenges when autocert
// is on, otherwise a redirect to HTTPS.
func (m *Manager) HTTPHandler() http.Handler {
	redirect := m.redirectHandler()
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(redirect)
	}
	return redirect
}

func (m *Manager) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		target := "https://" + host
		if m.config.Port != "443" {
			target = "https://" + net.JoinHostPort(host, m.config.Port)
		}
		target += r.URL.RequestURI()

		logger.SecurityInfo("Redirecting HTTP to HTTPS: %s -> %s", r.URL.String(), target)
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// GenerateSelfSignedCert writes a certificate and key for host, valid for one
// year, for local development.
func GenerateSelfSignedCert(certFile, keyFile, host string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"retrocalc development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	if err := writePEM(keyFile, "EC PRIVATE KEY", keyDER, 0600); err != nil {
		return err
	}
	logger.SecurityWarn("Generated self-signed certificate for %s at %s", host, certFile)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
