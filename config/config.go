package config

import (
	"crypto/ed25519"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tolelom/xornet/identity"
)

// BootstrapContact identifies a section member to join through, when this
// node is not the first in the network.
type BootstrapContact struct {
	Addr string `json:"addr"` // host:port
}

// TransportConfig describes the comm layer's listening address and
// optional mTLS material.
type TransportConfig struct {
	ListenAddr string     `json:"listen_addr"`
	TLS        *TLSConfig `json:"tls,omitempty"` // nil → plain TCP
}

// NetworkParams holds the tunable thresholds governing section topology.
type NetworkParams struct {
	ElderSize              int `json:"elder_size"`               // elders per section
	RecommendedSectionSize int `json:"recommended_section_size"` // adults before a split is considered
}

// Config holds all node configuration.
type Config struct {
	First bool `json:"first"` // true to found a new network as its sole elder

	DataDir          string `json:"data_dir"`
	KeystorePath     string `json:"keystore_path"`
	KeystorePassword string `json:"-"` // supplied out-of-band, never persisted

	Transport     TransportConfig    `json:"transport"`
	NetworkParams NetworkParams      `json:"network_params"`
	Contacts      []BootstrapContact `json:"contacts,omitempty"` // bootstrap peers when First is false

	RPCAddr string `json:"rpc_addr,omitempty"` // empty → RPC surface disabled

	// Keypair is the node's long-lived identity key, loaded from the
	// keystore at KeystorePath during Load. Never marshaled.
	Keypair ed25519.PrivateKey `json:"-"`

	tlsConfig *tls.Config
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		First:        true,
		DataDir:      "./data",
		KeystorePath: "./data/keystore.json",
		Transport: TransportConfig{
			ListenAddr: "0.0.0.0:7700",
		},
		NetworkParams: NetworkParams{
			ElderSize:              7,
			RecommendedSectionSize: 10,
		},
		RPCAddr: "127.0.0.1:7701",
	}
}

// Load reads a JSON config file from path, loads or creates the node's
// keystore under keystorePassword, resolves its TLS material, and
// validates the result.
func Load(path, keystorePassword string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.KeystorePassword = keystorePassword

	keypair, err := loadOrCreateKeypair(cfg.KeystorePath, keystorePassword)
	if err != nil {
		return nil, fmt.Errorf("config: keystore: %w", err)
	}
	cfg.Keypair = keypair

	tlsConfig, err := LoadTLSConfig(cfg.Transport.TLS)
	if err != nil {
		return nil, fmt.Errorf("config: tls: %w", err)
	}
	cfg.tlsConfig = tlsConfig

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

func loadOrCreateKeypair(path, password string) (ed25519.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return identity.LoadKeypair(path, password)
	}
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := identity.SaveKeypair(path, password, priv); err != nil {
		return nil, err
	}
	return priv, nil
}

// TLSConfig returns the *tls.Config resolved from Transport.TLS during
// Load, or nil when the node runs over plain TCP.
func (c *Config) TLSConfig() *tls.Config {
	return c.tlsConfig
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Transport.ListenAddr == "" {
		return fmt.Errorf("transport.listen_addr must not be empty")
	}
	if c.NetworkParams.ElderSize <= 0 {
		return fmt.Errorf("network_params.elder_size must be positive, got %d", c.NetworkParams.ElderSize)
	}
	if c.NetworkParams.RecommendedSectionSize < c.NetworkParams.ElderSize {
		return fmt.Errorf("network_params.recommended_section_size (%d) must be >= elder_size (%d)",
			c.NetworkParams.RecommendedSectionSize, c.NetworkParams.ElderSize)
	}
	if !c.First && len(c.Contacts) == 0 {
		return fmt.Errorf("contacts must not be empty when first is false")
	}
	if c.Transport.TLS != nil {
		t := c.Transport.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("transport.tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	if len(c.Keypair) != ed25519.PrivateKeySize && c.Keypair != nil {
		return fmt.Errorf("keypair: must be %d bytes, got %d", ed25519.PrivateKeySize, len(c.Keypair))
	}
	return nil
}

// Save writes the config to path as formatted JSON. The keypair and TLS
// material it was loaded from on disk are untouched; Save only persists
// the plain settings fields.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
