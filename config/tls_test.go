package config

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/tolelom/xornet/crypto/certgen"
	"github.com/tolelom/xornet/xorname"
)

func TestPeerNameRecoversCertgenCommonName(t *testing.T) {
	dir := t.TempDir()
	name := xorname.Hash([]byte("peer-under-test"))
	if err := certgen.GenerateAll(dir, name.String(), nil); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}

	certPEM, err := os.ReadFile(filepath.Join(dir, name.String()+".crt"))
	if err != nil {
		t.Fatalf("read node cert: %v", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatalf("no PEM block found in node cert")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	got, err := PeerName(cert)
	if err != nil {
		t.Fatalf("PeerName: %v", err)
	}
	if got != name {
		t.Fatalf("PeerName() = %v, want %v", got, name)
	}
}

func TestPeerNameRejectsNonNameCommonName(t *testing.T) {
	dir := t.TempDir()
	if err := certgen.GenerateAll(dir, "not-a-hex-name", nil); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}

	certPEM, err := os.ReadFile(filepath.Join(dir, "not-a-hex-name.crt"))
	if err != nil {
		t.Fatalf("read node cert: %v", err)
	}
	block, _ := pem.Decode(certPEM)
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	if _, err := PeerName(cert); err == nil {
		t.Fatalf("expected PeerName to reject a non-hex CommonName")
	}
}
