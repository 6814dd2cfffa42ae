// Command xornode starts a single overlay network node that founds a new
// network as its first elder. Joining an existing network (first=false) is
// not supported: routing.New returns an error for that configuration.
package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tolelom/xornet/config"
	"github.com/tolelom/xornet/crypto/certgen"
	"github.com/tolelom/xornet/identity"
	"github.com/tolelom/xornet/routing"
	"github.com/tolelom/xornet/rpc"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit")
	flag.Parse()

	// Read the keystore password from the environment, not a CLI flag —
	// flags leak via ps.
	password := os.Getenv("XORNET_PASSWORD")
	if password == "" {
		log.Println("WARNING: XORNET_PASSWORD not set — keystore will use an empty password")
	}

	if *genCerts != "" {
		cfg, err := loadConfig(*cfgPath, password)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		// The node cert's CommonName must be this node's own overlay name,
		// hex-encoded, so config.PeerName can recover it on the receiving
		// end of a handshake (see comm.Conn.PeerName) — not an arbitrary
		// label.
		peerID := identity.NewPeerID(0, cfg.Keypair.Public().(ed25519.PublicKey))
		if err := certgen.GenerateAll(*genCerts, peerID.Name().String(), nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s\n", *genCerts)
		return
	}

	cfg, err := loadConfig(*cfgPath, password)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}

	r, stream, err := routing.New(*cfg)
	if err != nil {
		log.Fatalf("routing: %v", err)
	}
	defer r.Close()
	log.Printf("Node %s listening on %s (elder of %s)", r.Name(), r.OurConnectionInfo(), r.OurPrefix())

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	go func() {
		for {
			ev, ok := stream.Next(ctx)
			if !ok {
				return
			}
			log.Printf("[event] %s name=%s", ev.Type, ev.Name)
		}
	}()

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer = rpc.NewServer(cfg.RPCAddr, rpc.NewHandlerForRouting(r), "")
		if err := rpcServer.Start(); err != nil {
			log.Fatalf("rpc start: %v", err)
		}
		defer rpcServer.Stop()
		log.Printf("RPC listening on %s", cfg.RPCAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")
	cancel()
}

func loadConfig(path, password string) (*config.Config, error) {
	cfg, err := config.Load(path, password)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			cfg := config.DefaultConfig()
			if err := config.Save(cfg, path); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return config.Load(path, password)
		}
		return nil, err
	}
	return cfg, nil
}
