// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Fantom-foundation/statesync/backend"
	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/backend/bucket/ldb"
	"github.com/Fantom-foundation/statesync/backend/bucket/memory"
	"github.com/Fantom-foundation/statesync/common/interrupt"
	"github.com/Fantom-foundation/statesync/database/node"
	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// initialBlock is the block the generated dust accounts are certified for.
const initialBlock = 7_212_230

var minerBlockKey = []byte("block")

var (
	numAccountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "the number of dust accounts of the initial state",
		Value: 100_000,
	}
	numLeechersFlag = cli.IntFlag{
		Name:  "leechers",
		Usage: "the number of nodes syncing from the miner",
		Value: 4,
	}
	numBlocksFlag = cli.IntFlag{
		Name:  "blocks",
		Usage: "the number of blocks mined while the leechers sync",
		Value: 10,
	}
	newAccountsFlag = cli.IntFlag{
		Name:  "new-accounts",
		Usage: "the number of accounts created per block",
		Value: 1000,
	}
	budgetFlag = cli.StringFlag{
		Name:  "budget",
		Usage: "the reply volume each leecher may receive per block",
		Value: "256KB",
	}
	maxRoundsFlag = cli.IntFlag{
		Name:  "max-rounds",
		Usage: "the number of sync rounds after mining before the emulation is considered failed",
		Value: 10_000,
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "the seed of the dust generator",
		Value: 3548264823,
	}
	emulationDirFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "keep the states in LevelDB instances in this directory instead of memory",
	}
	emulationMemoryFlag = cli.StringFlag{
		Name:  "max-memory",
		Usage: "the memory available for the node tree of each node",
		Value: "64MB",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve prometheus metrics on this address, e.g. localhost:9090",
	}
)

var emulateCommand = cli.Command{
	Action: emulate,
	Name:   "emulate",
	Usage:  "lets leechers sync from a miner producing new blocks",
	Flags: []cli.Flag{
		&numAccountsFlag,
		&numLeechersFlag,
		&numBlocksFlag,
		&newAccountsFlag,
		&budgetFlag,
		&maxRoundsFlag,
		&seedFlag,
		&emulationDirFlag,
		&emulationMemoryFlag,
		&replySizeFlag,
		&metricsAddrFlag,
		&cpuProfilingFlag,
	},
}

// store is a bucket and the LevelDB instance backing it, if any.
type store struct {
	bucket.Bucket
	db *leveldb.DB
}

func openStore(dir, name string) (*store, error) {
	if dir == "" {
		return &store{Bucket: memory.New()}, nil
	}
	db, err := backend.OpenLevelDb(filepath.Join(dir, name), nil)
	if err != nil {
		return nil, err
	}
	return &store{Bucket: ldb.New(db, backend.StateLeavesKey), db: db}, nil
}

func (s *store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// lastBlock returns the block recorded by a previous emulation run.
func (s *store) lastBlock() (uint32, bool, error) {
	if s.db == nil {
		return 0, false, nil
	}
	val, found, err := ldb.New(s.db, backend.MinerKey).Get(minerBlockKey)
	if err != nil || !found {
		return 0, false, err
	}
	if len(val) != 4 {
		return 0, false, fmt.Errorf("invalid block record of length %d", len(val))
	}
	return binary.BigEndian.Uint32(val), true, nil
}

func (s *store) recordBlock(block int64) error {
	if s.db == nil || block < 0 {
		return nil
	}
	return ldb.New(s.db, backend.MinerKey).Put(minerBlockKey, binary.BigEndian.AppendUint32(nil, uint32(block)))
}

type leecher struct {
	*node.Node
	stats sync.Stats
}

func emulate(ctx *cli.Context) (err error) {
	profileTarget := ctx.String(cpuProfilingFlag.Name)
	if len(profileTarget) != 0 {
		if err := StartCPUProfile(profileTarget); err != nil {
			return err
		}
		defer StopCPUProfile()
	}

	log, err := newLogger(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	runCtx := interrupt.Register(ctx.Context, log)

	numAccounts := ctx.Int(numAccountsFlag.Name)
	numBlocks := ctx.Int(numBlocksFlag.Name)
	newAccounts := ctx.Int(newAccountsFlag.Name)
	budget, err := parseSize(ctx, &budgetFlag)
	if err != nil {
		return err
	}
	hints := sync.DefaultHints()
	if hints.MaxMemory, err = parseSize(ctx, &emulationMemoryFlag); err != nil {
		return err
	}
	if hints.ApproxMaxReplySize, err = parseSize(ctx, &replySizeFlag); err != nil {
		return err
	}
	hints.NumLeaves = uint64(numAccounts + numBlocks*newAccounts)
	hints.ChangesPerBlock = uint64(max(1, newAccounts))
	log.Info("derived sync parameters", zap.Stringer("hints", &hints))

	reg := prometheus.NewRegistry()
	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		go func() {
			handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	dir := ctx.String(emulationDirFlag.Name)
	minerStore, err := openStore(dir, "miner")
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, minerStore.Close())
	}()

	block, resumed, err := minerStore.lastBlock()
	if err != nil {
		return err
	}
	dust := node.NewDustGenerator(ctx.Int64(seedFlag.Name))
	if !resumed {
		start := time.Now()
		if err := dust.Generate(minerStore, numAccounts); err != nil {
			return err
		}
		block = initialBlock
		log.Info("generated dust accounts", zap.Int("accounts", numAccounts), zap.Duration("time", time.Since(start)))
	} else {
		log.Info("resuming from existing state", zap.Uint32("block", block))
	}

	start := time.Now()
	miner, err := node.NewMiner(minerStore, hints, block,
		node.WithName("miner"), node.WithLogger(log), node.WithRegisterer(reg))
	if err != nil {
		return err
	}
	if err := minerStore.recordBlock(miner.SyncedBlock()); err != nil {
		return err
	}
	log.Info("initialized miner", zap.Uint32("block", block), zap.Duration("time", time.Since(start)))

	network := node.NewMemoryNetwork()
	minerAddress := network.Register(miner)

	leechers := make([]*leecher, ctx.Int(numLeechersFlag.Name))
	stores := make([]*store, 0, len(leechers))
	defer func() {
		for _, s := range stores {
			err = errors.Join(err, s.Close())
		}
	}()
	for i := range leechers {
		name := fmt.Sprintf("leecher-%d", i)
		s, openErr := openStore(dir, name)
		if openErr != nil {
			return openErr
		}
		stores = append(stores, s)
		n, nodeErr := node.NewNode(s, hints, nil,
			node.WithName(name), node.WithLogger(log), node.WithRegisterer(reg))
		if nodeErr != nil {
			return nodeErr
		}
		network.Register(n)
		leechers[i] = &leecher{Node: n}
	}

	syncRound := func(group *errgroup.Group, groupCtx context.Context) {
		for _, l := range leechers {
			l := l
			group.Go(func() error {
				peer := node.NewRemotePeer(network, minerAddress)
				return l.Sync(groupCtx, peer, &l.stats, budget.Bytes())
			})
		}
	}

	start = time.Now()
	for i := 0; i < numBlocks; i++ {
		if interrupt.IsCancelled(runCtx) {
			return interrupt.ErrCanceled
		}
		group, groupCtx := errgroup.WithContext(runCtx)
		group.Go(func() error {
			return mine(miner, dust, newAccounts)
		})
		syncRound(group, groupCtx)
		if err := group.Wait(); err != nil {
			return err
		}
		if err := minerStore.recordBlock(miner.SyncedBlock()); err != nil {
			return err
		}
		log.Info("mined block", zap.Int64("block", miner.SyncedBlock()), zap.Int("synced", countSynced(leechers, miner)))
	}
	log.Info("mining done", zap.Duration("time", time.Since(start)))

	start = time.Now()
	rounds := 0
	for ; countSynced(leechers, miner) < len(leechers); rounds++ {
		if interrupt.IsCancelled(runCtx) {
			return interrupt.ErrCanceled
		}
		if rounds >= ctx.Int(maxRoundsFlag.Name) {
			return fmt.Errorf("leechers did not converge within %d rounds", rounds)
		}
		group, groupCtx := errgroup.WithContext(runCtx)
		syncRound(group, groupCtx)
		if err := group.Wait(); err != nil {
			return err
		}
	}
	log.Info("leechers converged", zap.Int("rounds", rounds), zap.Duration("time", time.Since(start)))

	total := sync.Stats{}
	for _, l := range leechers {
		if err := verify(miner, l); err != nil {
			return err
		}
		log.Info("leecher verified", zap.String("leecher", l.Name()), zap.Stringer("stats", &l.stats))
		total.Add(&l.stats)
	}
	fmt.Printf("Miner root hash: %v at block %d\n", miner.RootHash(), miner.SyncedBlock())
	fmt.Printf("Total traffic: %v\n", &total)
	return nil
}

func mine(miner *node.Miner, dust *node.DustGenerator, accounts int) error {
	if err := miner.NewBlock(); err != nil {
		return err
	}
	for i := 0; i < accounts; i++ {
		account := dust.RandomAccount()
		if err := miner.CreateAccount(dust.RandomAddress(), &account); err != nil {
			return err
		}
	}
	return miner.SealBlock()
}

func countSynced(leechers []*leecher, miner *node.Miner) int {
	block := miner.SyncedBlock()
	res := 0
	for _, l := range leechers {
		if l.SyncedBlock() == block {
			res++
		}
	}
	return res
}

func verify(miner *node.Miner, l *leecher) error {
	if want, got := miner.RootHash(), l.RootHash(); want != got {
		return fmt.Errorf("%s has root hash %v, expected %v", l.Name(), got, want)
	}
	same, err := bucket.HasSameData(miner.DB(), l.DB())
	if err != nil {
		return err
	}
	if !same {
		diff, _ := bucket.Diff(miner.DB(), l.DB(), 5)
		return fmt.Errorf("%s differs from miner: %v", l.Name(), diff)
	}
	return nil
}
