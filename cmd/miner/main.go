// Command miner is a standalone proof-of-work client: it asks a running
// node for a block template over the peer-link, searches for a winning
// nonce locally, and submits the solved block back.
package main

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	jflags "github.com/jessevdk/go-flags"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/peerlink"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/wire"
)

// templateRefresh bounds how long one template is searched before a fresh
// one is requested, so the miner never works against a stale tip for long.
const templateRefresh = 5 * time.Second

func main() {
	if err := run(); err != nil {
		if flagsErr, ok := err.(*jflags.Error); ok && flagsErr.Type == jflags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "miner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	network, ok := networkByName(cfg.Network)
	if !ok {
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	p, ok := params.ByNetwork(network)
	if !ok {
		return fmt.Errorf("no parameters registered for network %q", cfg.Network)
	}
	rewardAddr, err := primitives.DecodeAddress(cfg.RewardAddr, p.AddressVersion)
	if err != nil {
		return fmt.Errorf("--address: %w", err)
	}

	identity, _, err := primitives.NewKeyPair(cryptorand.Reader)
	if err != nil {
		return fmt.Errorf("generate session identity: %w", err)
	}
	client := peerlink.NewServer(identity, nil, nil, p)
	if err := client.Dial(cfg.Node); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Node, err)
	}
	defer client.Close()

	fmt.Printf("mining against %s for %s, %d worker(s)\n", cfg.Node, rewardAddr, cfg.Workers)

	var found atomic.Uint64
	for {
		tmpl, err := fetchTemplate(client, cfg.Node, rewardAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "miner: fetch template: %v\n", err)
			time.Sleep(time.Second)
			continue
		}

		solved, ok := searchNonce(tmpl, cfg.Workers, templateRefresh)
		if !ok {
			continue // refresh window elapsed, try a fresh template
		}

		// The node never acknowledges a submitted block (acceptance shows up
		// as a later NewBlock relay instead), so this is fire-and-forget
		// rather than a Request/Await round trip.
		peer, ok := client.Peer(cfg.Node)
		if !ok {
			fmt.Fprintln(os.Stderr, "miner: lost connection to node, reconnecting")
			if err := client.Dial(cfg.Node); err != nil {
				fmt.Fprintf(os.Stderr, "miner: reconnect: %v\n", err)
				time.Sleep(time.Second)
			}
			continue
		}
		peer.Enqueue(&wire.MsgSubmitBlock{Block: solved})
		found.Add(1)
		fmt.Printf("solved block at height %d, hash %s (total found: %d)\n",
			solved.Header.Height, solved.Hash(), found.Load())
	}
}

func fetchTemplate(client *peerlink.Server, nodeAddr string, rewardAddr primitives.Address) (*block.Block, error) {
	reply, err := client.Request(nodeAddr, &wire.MsgGetTemplate{RewardAddress: rewardAddr})
	if err != nil {
		return nil, err
	}
	tmpl, ok := reply.(*wire.MsgBlockTemplate)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
	return tmpl.Block, nil
}

// searchNonce runs workers goroutines over disjoint nonce strides against
// tmpl until one finds a hash meeting the difficulty target or timeout
// elapses with nothing found.
func searchNonce(tmpl *block.Block, workers int, timeout time.Duration) (*block.Block, bool) {
	if workers <= 0 {
		workers = 1
	}
	type result struct {
		block *block.Block
		nonce uint64
	}
	resultCh := make(chan result, workers)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(index)))
			nonce := r.Uint64() + uint64(index)
			stride := uint64(workers)

			local := *tmpl
			for {
				select {
				case <-stop:
					return
				default:
				}
				local.Header.Nonce = nonce
				local.Header.Timestamp = time.Now().Unix()
				hash := local.Hash()
				if primitives.MeetsTarget(hash, local.Header.DifficultyTarget) {
					blk := local
					select {
					case resultCh <- result{block: &blk, nonce: nonce}:
					default:
					}
					return
				}
				nonce += stride
			}
		}(i)
	}

	var winner *block.Block
	select {
	case r := <-resultCh:
		winner = r.block
	case <-time.After(timeout):
	}
	close(stop)
	wg.Wait()

	if winner == nil {
		return nil, false
	}
	return winner, true
}

func networkByName(name string) (params.Network, bool) {
	switch name {
	case "mainnet":
		return params.Mainnet, true
	case "testnet":
		return params.Testnet, true
	case "regtest":
		return params.Regtest, true
	default:
		return 0, false
	}
}
