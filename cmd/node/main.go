// Command node runs a full pali-coin peer: a chain store, UTXO index,
// mempool, consensus engine, and an encrypted peer-link server, optionally
// with an in-process miner.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	jflags "github.com/jessevdk/go-flags"

	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/logger"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/miner"
	"github.com/pali-coin/node/internal/peerlink"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/utxo"
)

var log = logger.Get(logger.SubsystemNode)

func main() {
	if err := run(); err != nil {
		if flagsErr, ok := err.(*jflags.Error); ok && flagsErr.Type == jflags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, p, err := parseConfig()
	if err != nil {
		return err
	}

	dataDir := expandHome(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	logger.SetLevels(cfg.LogLevel)
	if err := logger.InitLogRotator(filepath.Join(dataDir, "logs", "node.log")); err != nil {
		return err
	}
	defer logger.Close()

	identity, err := loadOrCreateIdentity(dataDir)
	if err != nil {
		return err
	}
	nodeAddr, err := identity.PublicKey().Address()
	if err != nil {
		return err
	}
	log.Infof("node identity %s, network %s", nodeAddr, p.Network)

	store, err := chainstore.Open(filepath.Join(dataDir, "chain"), p)
	if err != nil {
		return err
	}
	defer store.Close()

	utxoSet := utxo.New()
	if err := store.LoadUTXOSet(utxoSet); err != nil {
		return err
	}

	var engine *consensus.Engine
	pool := mempool.New(mempool.Config{
		MaxCount:         50_000,
		MaxBytes:         256 << 20,
		ChainID:          uint64(p.Network),
		CoinbaseMaturity: p.CoinbaseMaturity,
	}, utxoSet, func() uint64 {
		_, height := engine.Tip()
		return height
	})

	engine, err = consensus.NewEngine(store, utxoSet, pool, p)
	if err != nil {
		return err
	}
	tipHash, tipHeight := engine.Tip()
	log.Infof("chain tip at height %d (%s)", tipHeight, tipHash)

	link := peerlink.NewServer(identity, engine, pool, p)
	if err := link.Listen(cfg.Listen); err != nil {
		return err
	}
	log.Infof("listening for peers on %s", cfg.Listen)
	defer link.Close()

	for _, addr := range cfg.ConnectTo {
		if err := link.Dial(addr); err != nil {
			log.Warnf("connect to %s failed: %v", addr, err)
			continue
		}
		log.Infof("connected to %s", addr)
	}

	if cfg.MineTo != "" {
		rewardAddr, err := primitives.DecodeAddress(cfg.MineTo, p.AddressVersion)
		if err != nil {
			return fmt.Errorf("--mineto: %w", err)
		}
		m := miner.New(engine, pool, p, miner.Config{
			RewardAddress: rewardAddr,
			Workers:       cfg.MineThread,
		})
		m.Start()
		defer m.Stop()
		log.Infof("mining enabled, reward address %s, %d worker(s)", rewardAddr, cfg.MineThread)
	}

	waitForShutdown()
	log.Infof("shutting down")
	return nil
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
