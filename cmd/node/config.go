package main

import (
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/pali-coin/node/internal/params"
)

type nodeConfig struct {
	DataDir    string   `short:"b" long:"datadir" description:"Directory to store block, UTXO, and identity data" default:"~/.pali-node"`
	Network    string   `short:"n" long:"network" description:"mainnet, testnet, or regtest" default:"mainnet"`
	Listen     string   `short:"l" long:"listen" description:"Address to accept peer connections on" default:"0.0.0.0:8233"`
	ConnectTo  []string `short:"c" long:"connect" description:"Peer address to dial at startup; may be given multiple times"`
	LogLevel   string   `long:"loglevel" description:"Log verbosity for every subsystem" default:"info"`
	MineTo     string   `long:"mineto" description:"Reward address; enables in-process mining if set"`
	MineThread int      `long:"minethreads" description:"Worker goroutines if mining is enabled" default:"1"`
}

func parseConfig() (*nodeConfig, params.Params, error) {
	cfg := &nodeConfig{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, params.Params{}, err
	}

	var network params.Network
	switch strings.ToLower(cfg.Network) {
	case "mainnet":
		network = params.Mainnet
	case "testnet":
		network = params.Testnet
	case "regtest":
		network = params.Regtest
	default:
		return nil, params.Params{}, errors.Errorf("unknown network %q", cfg.Network)
	}
	p, ok := params.ByNetwork(network)
	if !ok {
		return nil, params.Params{}, errors.Errorf("no parameters registered for network %q", cfg.Network)
	}

	return cfg, p, nil
}
