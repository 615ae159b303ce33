package main

import (
	"os"

	flags "github.com/jessevdk/go-flags"
)

const (
	generateSubCmd = "generate"
	addressSubCmd  = "address"
	balanceSubCmd  = "balance"
	sendSubCmd     = "send"
	historySubCmd  = "history"
)

type commonFlags struct {
	KeyFile string `long:"keyfile" short:"f" description:"Private key file location" default:"~/.pali-wallet/key"`
	Node    string `long:"node" short:"s" description:"Node address to query or submit transactions to" default:"127.0.0.1:8233"`
	Network string `long:"network" short:"n" description:"mainnet, testnet, or regtest" default:"mainnet"`
}

type generateConfig struct {
	commonFlags
}

type addressConfig struct {
	commonFlags
}

type balanceConfig struct {
	commonFlags
}

type sendConfig struct {
	commonFlags
	To     string `long:"to" short:"t" description:"Recipient address" required:"true"`
	Amount uint64 `long:"amount" short:"v" description:"Amount to send, in base units" required:"true"`
	Fee    uint64 `long:"fee" description:"Transaction fee, in base units" default:"1000"`
	Data   string `long:"data" description:"Optional data blob attached to the transaction"`
}

type historyConfig struct {
	commonFlags
	Limit uint32 `long:"limit" short:"l" description:"Maximum number of entries to show" default:"25"`
}

type rootFlags struct{}

func parseCommandLine() (string, interface{}) {
	parser := flags.NewParser(&rootFlags{}, flags.Default)

	generateConf := &generateConfig{}
	parser.AddCommand(generateSubCmd, "Generate a new key pair",
		"Generates a new private key, saves it to --keyfile, and prints the resulting address.", generateConf)

	addressConf := &addressConfig{}
	parser.AddCommand(addressSubCmd, "Show this wallet's address",
		"Reads --keyfile and prints the address it derives.", addressConf)

	balanceConf := &balanceConfig{}
	parser.AddCommand(balanceSubCmd, "Query an address's balance",
		"Queries --node over the peer-link for this wallet's confirmed balance.", balanceConf)

	sendConf := &sendConfig{}
	parser.AddCommand(sendSubCmd, "Send coins to another address",
		"Builds, signs, and submits a transaction to --node.", sendConf)

	historyConf := &historyConfig{}
	parser.AddCommand(historySubCmd, "Show recent transaction history",
		"Queries --node for this wallet's recent transaction history, most recent first.", historyConf)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return "", nil
	}

	if parser.Command.Active == nil {
		return "", nil
	}

	switch parser.Command.Active.Name {
	case generateSubCmd:
		return generateSubCmd, generateConf
	case addressSubCmd:
		return addressSubCmd, addressConf
	case balanceSubCmd:
		return balanceSubCmd, balanceConf
	case sendSubCmd:
		return sendSubCmd, sendConf
	case historySubCmd:
		return historySubCmd, historyConf
	default:
		return "", nil
	}
}
