package main

import (
	flags "github.com/jessevdk/go-flags"
)

type minerConfig struct {
	Node       string `short:"s" long:"node" description:"Address of the node to mine for" default:"127.0.0.1:8233"`
	RewardAddr string `short:"a" long:"address" description:"Address to pay the block reward to" required:"true"`
	Network    string `short:"n" long:"network" description:"mainnet, testnet, or regtest" default:"mainnet"`
	Workers    int    `short:"w" long:"workers" description:"Number of nonce-search goroutines" default:"1"`
}

func parseConfig() (*minerConfig, error) {
	cfg := &minerConfig{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	return cfg, nil
}
