// Package miner searches for proof-of-work nonces against templates built
// from the current chain tip and mempool, and submits completed blocks to
// the consensus engine.
package miner

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/logger"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
)

// Config bundles the policy knobs a Miner needs.
type Config struct {
	RewardAddress primitives.Address
	Workers       int
	ShareBuffer   int           // bounded share channel capacity
	StaleTimeout  time.Duration // default 120s; 0 selects the default
	RefreshEvery  time.Duration // tip-change poll interval; 0 selects the default
}

const (
	defaultStaleTimeout = 120 * time.Second
	defaultRefreshEvery = 500 * time.Millisecond
	hashRateWindow      = 5 * time.Minute
)

type share struct {
	job       *job
	nonce     uint64
	timestamp int64
	hash      primitives.Hash
}

// sample is one hashRate bucket: hashes tried since the previous sample,
// recorded at time at.
type sample struct {
	at     time.Time
	hashes uint64
}

// Miner runs N nonce-search workers against templates derived from engine
// and pool, submitting completed blocks back to engine.
type Miner struct {
	cfg    Config
	engine *consensus.Engine
	pool   *mempool.Mempool
	params params.Params
	log    *logger.Logger

	currentJob atomic.Pointer[job]
	shares     chan share
	stop       atomic.Bool
	wg         sync.WaitGroup

	hashesTried atomic.Uint64

	ratesMu sync.Mutex
	samples []sample
}

// New creates a Miner. It does not start mining until Start is called.
func New(engine *consensus.Engine, pool *mempool.Mempool, p params.Params, cfg Config) *Miner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShareBuffer <= 0 {
		cfg.ShareBuffer = 16
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = defaultStaleTimeout
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = defaultRefreshEvery
	}
	return &Miner{
		cfg:    cfg,
		engine: engine,
		pool:   pool,
		params: p,
		log:    logger.Get(logger.SubsystemMiner),
		shares: make(chan share, cfg.ShareBuffer),
	}
}

// Start spawns the work generator, the nonce-search workers, and the
// submitter, and returns immediately.
func (m *Miner) Start() {
	m.stop.Store(false)

	m.wg.Add(1)
	go m.workGenerator()

	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.mineWorker(i)
	}

	m.wg.Add(1)
	go m.submitLoop()
}

// Stop sets the cooperative stop flag and waits for every goroutine to
// return.
func (m *Miner) Stop() {
	m.stop.Store(true)
	m.wg.Wait()
}

// HashRate reports the sliding average hashes-per-second over the last
// five minutes.
func (m *Miner) HashRate() float64 {
	m.ratesMu.Lock()
	defer m.ratesMu.Unlock()

	cutoff := time.Now().Add(-hashRateWindow)
	var total uint64
	var oldest time.Time
	kept := m.samples[:0]
	for _, s := range m.samples {
		if s.at.Before(cutoff) {
			continue
		}
		if oldest.IsZero() || s.at.Before(oldest) {
			oldest = s.at
		}
		total += s.hashes
		kept = append(kept, s)
	}
	m.samples = kept
	if len(kept) == 0 {
		return 0
	}
	elapsed := time.Since(oldest).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	return float64(total) / elapsed
}

// workGenerator watches the chain tip and pushes a fresh job whenever it
// advances, at cfg.RefreshEvery granularity.
func (m *Miner) workGenerator() {
	defer m.wg.Done()

	var lastTip primitives.Hash
	ticker := time.NewTicker(m.cfg.RefreshEvery)
	defer ticker.Stop()

	for !m.stop.Load() {
		tip, _ := m.engine.Tip()
		if tip != lastTip || m.currentJob.Load() == nil {
			j, err := m.buildJob()
			if err != nil {
				m.log.Warnf("building template: %v", err)
			} else {
				m.currentJob.Store(j)
				lastTip = tip
			}
		}
		<-ticker.C
	}
}

// mineWorker searches a disjoint nonce stride against whatever job is
// currently published, refreshing its local copy whenever the job changes.
func (m *Miner) mineWorker(index int) {
	defer m.wg.Done()

	r := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(index)))
	var local *job
	var nonce, stride uint64
	var rounds int

	const pollGranularity = 4096

	for {
		if m.stop.Load() {
			return
		}

		cur := m.currentJob.Load()
		if cur == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if cur != local {
			local = cur
			nonce = r.Uint64() + uint64(index)
			stride = uint64(m.cfg.Workers)
		}

		b := *local.block // Header is a value field; mutating b.Header never touches local.block.

		for i := 0; i < pollGranularity; i++ {
			b.Header.Nonce = nonce
			b.Header.Timestamp = time.Now().Unix()
			hash := b.Hash()
			m.hashesTried.Add(1)
			if primitives.MeetsTarget(hash, b.Header.DifficultyTarget) {
				select {
				case m.shares <- share{job: local, nonce: nonce, timestamp: b.Header.Timestamp, hash: hash}:
				default:
					m.log.Warnf("share channel full, dropping share %s", hash)
				}
				break
			}
			nonce += stride
		}

		rounds++
		if rounds%8 == 0 {
			m.recordSample()
		}
	}
}

func (m *Miner) recordSample() {
	m.ratesMu.Lock()
	defer m.ratesMu.Unlock()
	hashes := m.hashesTried.Swap(0)
	m.samples = append(m.samples, sample{at: time.Now(), hashes: hashes})
}

// submitLoop discards stale shares and hands the rest to the consensus
// engine.
func (m *Miner) submitLoop() {
	defer m.wg.Done()
	for !m.stop.Load() {
		select {
		case s := <-m.shares:
			m.handleShare(s)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (m *Miner) handleShare(s share) {
	if time.Since(s.job.createdAt) > m.cfg.StaleTimeout {
		m.log.Debugf("discarding stale share %s (job age %s)", s.hash, time.Since(s.job.createdAt))
		return
	}
	tip, _ := m.engine.Tip()
	if tip != s.job.parentHash {
		m.log.Debugf("discarding share %s, parent %s is no longer tip", s.hash, s.job.parentHash)
		return
	}

	b := *s.job.block
	b.Header.Nonce = s.nonce
	b.Header.Timestamp = s.timestamp

	if err := m.engine.AddBlock(&b); err != nil {
		m.log.Warnf("submitted block %s rejected: %v", s.hash, err)
		return
	}
	m.log.Infof("mined block %s at height %d", s.hash, b.Header.Height)
}
