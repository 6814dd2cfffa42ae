package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tolelom/xornet/xorname"
)

// TLSConfig holds paths to the PEM files needed for mTLS between section
// peers. When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// LoadTLSConfig builds a *tls.Config from the PEM paths in cfg.
// If cfg is nil or all paths are empty it returns (nil, nil), meaning
// the caller should fall back to plain TCP.
func LoadTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || (cfg.CACert == "" && cfg.NodeCert == "" && cfg.NodeKey == "") {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.NodeCert, cfg.NodeKey)
	if err != nil {
		return nil, fmt.Errorf("load node cert/key: %w", err)
	}

	caPEM, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caPool,
		RootCAs:      caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// PeerName recovers the overlay name a peer's certificate claims to
// belong to: certgen.GenerateAll sets a node cert's CommonName to the
// node's hex-encoded xorname.Name, so once the handshake has verified the
// chain (ClientAuth: RequireAndVerifyClientCert above), the CommonName is
// the section's only link back from "some cert this CA signed" to "which
// member dialed in." Callers still need to check the returned name
// against the member they expected — a valid certificate only proves the
// CA vouched for this name, not that it's the name membership voting
// actually granted a slot to.
func PeerName(cert *x509.Certificate) (xorname.Name, error) {
	var name xorname.Name
	raw, err := hex.DecodeString(cert.Subject.CommonName)
	if err != nil {
		return name, fmt.Errorf("config: peer cert CommonName %q is not a valid name: %w", cert.Subject.CommonName, err)
	}
	if len(raw) != xorname.Len {
		return name, fmt.Errorf("config: peer cert CommonName decodes to %d bytes, want %d", len(raw), xorname.Len)
	}
	copy(name[:], raw)
	return name, nil
}
