// Command wallet is a thin key-management and transaction client: it keeps
// a single private key on disk and talks to a running node over the
// peer-link to check balances, send coins, and show history.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/peerlink"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/wire"
)

func main() {
	cmd, cfg := parseCommandLine()
	if cmd == "" {
		os.Exit(1)
	}

	var err error
	switch c := cfg.(type) {
	case *generateConfig:
		err = runGenerate(c)
	case *addressConfig:
		err = runAddress(c)
	case *balanceConfig:
		err = runBalance(c)
	case *sendConfig:
		err = runSend(c)
	case *historyConfig:
		err = runHistory(c)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wallet: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(cfg *generateConfig) error {
	path := expandHome(cfg.KeyFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; remove it first if you really want a new key", path)
	}
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, priv.Bytes(), 0600); err != nil {
		return err
	}
	addr, err := pub.Address()
	if err != nil {
		return err
	}
	p, err := resolveParams(cfg.Network)
	if err != nil {
		return err
	}
	fmt.Printf("key saved to %s\n", path)
	fmt.Printf("address: %s\n", primitives.EncodeAddress(addr, p.AddressVersion))
	return nil
}

func runAddress(cfg *addressConfig) error {
	_, pub, err := loadKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	p, err := resolveParams(cfg.Network)
	if err != nil {
		return err
	}
	addr, err := pub.Address()
	if err != nil {
		return err
	}
	fmt.Println(primitives.EncodeAddress(addr, p.AddressVersion))
	return nil
}

func runBalance(cfg *balanceConfig) error {
	_, pub, err := loadKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	p, err := resolveParams(cfg.Network)
	if err != nil {
		return err
	}
	addr, err := pub.Address()
	if err != nil {
		return err
	}

	client, err := connect(cfg.Node, p)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Request(cfg.Node, &wire.MsgGetBalance{Address: addr})
	if err != nil {
		return err
	}
	balance, ok := reply.(*wire.MsgBalance)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", reply)
	}
	fmt.Printf("%s: %d\n", primitives.EncodeAddress(addr, p.AddressVersion), balance.Amount)
	return nil
}

func runSend(cfg *sendConfig) error {
	priv, pub, err := loadKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	p, err := resolveParams(cfg.Network)
	if err != nil {
		return err
	}
	fromAddr, err := pub.Address()
	if err != nil {
		return err
	}
	toAddr, err := primitives.DecodeAddress(cfg.To, p.AddressVersion)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if len(cfg.Data) > txn.MaxDataSize {
		return fmt.Errorf("--data exceeds %d bytes", txn.MaxDataSize)
	}

	client, err := connect(cfg.Node, p)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Request(cfg.Node, &wire.MsgGetHeight{})
	if err != nil {
		return err
	}
	height, ok := reply.(*wire.MsgHeight)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", reply)
	}

	tx := &txn.Transaction{
		Version: 1,
		From:    fromAddr,
		To:      toAddr,
		Amount:  cfg.Amount,
		Fee:     cfg.Fee,
		Nonce:   height.Height, // monotonic enough to dedup resubmits of the same send at the same tip
		ChainID: uint64(p.Network),
		Data:    []byte(cfg.Data),
	}
	if err := txn.Sign(tx, priv); err != nil {
		return err
	}

	peer, ok := client.Peer(cfg.Node)
	if !ok {
		return fmt.Errorf("lost connection to %s", cfg.Node)
	}
	peer.Enqueue(&wire.MsgNewTransaction{Transaction: tx})

	fmt.Printf("submitted %s: %d -> %s (fee %d)\n", tx.ID(), cfg.Amount, cfg.To, cfg.Fee)
	return nil
}

func runHistory(cfg *historyConfig) error {
	_, pub, err := loadKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	p, err := resolveParams(cfg.Network)
	if err != nil {
		return err
	}
	addr, err := pub.Address()
	if err != nil {
		return err
	}

	client, err := connect(cfg.Node, p)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Request(cfg.Node, &wire.MsgGetTransactionHistory{Address: addr, Limit: cfg.Limit})
	if err != nil {
		return err
	}
	history, ok := reply.(*wire.MsgTransactionHistory)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", reply)
	}
	if len(history.Transactions) == 0 {
		fmt.Println("no transactions")
		return nil
	}
	for _, tx := range history.Transactions {
		fmt.Printf("%s  %s -> %s  amount=%d fee=%d\n",
			tx.ID(),
			primitives.EncodeAddress(tx.From, p.AddressVersion),
			primitives.EncodeAddress(tx.To, p.AddressVersion),
			tx.Amount, tx.Fee)
	}
	return nil
}

func connect(nodeAddr string, p params.Params) (*peerlink.Server, error) {
	identity, _, err := primitives.NewKeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}
	client := peerlink.NewServer(identity, nil, nil, p)
	if err := client.Dial(nodeAddr); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", nodeAddr, err)
	}
	return client, nil
}

func loadKey(path string) (*primitives.PrivateKey, *primitives.PublicKey, error) {
	raw, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, nil, fmt.Errorf("read key file: %w (run 'wallet generate' first)", err)
	}
	priv, err := primitives.PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.PublicKey(), nil
}

func resolveParams(network string) (params.Params, error) {
	var n params.Network
	switch network {
	case "mainnet":
		n = params.Mainnet
	case "testnet":
		n = params.Testnet
	case "regtest":
		n = params.Regtest
	default:
		return params.Params{}, fmt.Errorf("unknown network %q", network)
	}
	p, ok := params.ByNetwork(n)
	if !ok {
		return params.Params{}, fmt.Errorf("no parameters registered for network %q", network)
	}
	return p, nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
