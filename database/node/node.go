// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package node

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/state"
	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultMaxConsecutiveMisses is the number of replies in a row without data
// after which a Sync call gives up on its peer.
const DefaultMaxConsecutiveMisses = 256

// Node is a participant of the state sync network. It serves its state to
// other nodes and replicates the state of a peer. All methods are safe for
// concurrent use; a Sync call should only be active once per node.
type Node struct {
	mu        gosync.RWMutex
	state     *state.State
	db        bucket.Bucket
	name      string
	log       *zap.Logger
	metrics   syncMetrics
	maxMisses int
}

type config struct {
	name        string
	log         *zap.Logger
	registerer  prometheus.Registerer
	maxMisses   int
	verifier    state.ProofVerifier
	depth       int
	phase1Depth int
}

// Option customizes a Node created by NewNode.
type Option func(*config)

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithRegisterer registers the sync metrics of the node.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

func WithMaxConsecutiveMisses(limit int) Option {
	return func(c *config) {
		c.maxMisses = limit
	}
}

func WithProofVerifier(verifier state.ProofVerifier) Option {
	return func(c *config) {
		c.verifier = verifier
	}
}

// WithDepths overrides the tree depths derived from the hints.
func WithDepths(depth, phase1Depth int) Option {
	return func(c *config) {
		c.depth = depth
		c.phase1Depth = phase1Depth
	}
}

// NewNode creates a node over the given bucket. The tree depths and reply
// limits are derived from the hints. If dataValidForBlock is set, the
// content of the bucket is certified for that block.
func NewNode(db bucket.Bucket, hints sync.Hints, dataValidForBlock *uint32, opts ...Option) (*Node, error) {
	cfg := config{
		log:         zap.NewNop(),
		maxMisses:   DefaultMaxConsecutiveMisses,
		verifier:    state.NoVerification{},
		depth:       hints.Depth(),
		phase1Depth: hints.Phase1Depth(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxMisses < 1 {
		return nil, fmt.Errorf("invalid number of consecutive misses: %d", cfg.maxMisses)
	}
	maxNodes := 1
	if hints.NodeSize > 0 {
		maxNodes = max(1, int(hints.ApproxMaxReplySize.Bytes()/hints.NodeSize))
	}
	st, err := state.New(db, cfg.depth, cfg.phase1Depth,
		state.WithMaxLeavesPerReply(hints.MaxLeavesPerReply()),
		state.WithMaxNodesPerRequest(maxNodes),
		state.WithProofVerifier(cfg.verifier),
	)
	if err != nil {
		return nil, err
	}
	metrics, err := newMetrics(cfg.name, cfg.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics of node %q; %w", cfg.name, err)
	}
	res := &Node{
		state:     st,
		db:        db,
		name:      cfg.name,
		log:       cfg.log.With(zap.String("node", cfg.name)),
		metrics:   metrics,
		maxMisses: cfg.maxMisses,
	}
	if dataValidForBlock != nil {
		if err := res.InitFromDb(*dataValidForBlock); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Sync replicates the state of the peer until there is nothing left to
// request, the replies received in this call exceed maxBytes, or the peer
// failed to provide data for too many requests in a row. The traffic is
// accumulated into stats. Transport and processing errors abort the call.
func (n *Node) Sync(ctx context.Context, peer Peer, stats *sync.Stats, maxBytes uint64) error {
	var used uint64
	misses := 0
	probed := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.mu.Lock()
		request := n.state.NextSyncRequest()
		if request == nil && !probed {
			probed = true
			if probe := n.state.HeadProbeRequest(); probe != nil {
				request = probe
			}
		}
		if request == nil {
			n.state.CatchUpBlocks()
			n.mu.Unlock()
			return nil
		}
		n.mu.Unlock()

		delta := sync.Stats{NumRequests: 1, RequestTotalBytes: request.ByteSize()}
		size, miss, err := n.exchange(ctx, peer, request, &delta)
		stats.Add(&delta)
		n.metrics.record(&delta)
		if err != nil {
			return err
		}

		used += size
		if miss {
			misses++
			if misses >= n.maxMisses {
				n.log.Debug("peer failed to provide data", zap.Int("misses", misses))
				return nil
			}
		} else {
			misses = 0
		}
		if used >= maxBytes {
			return nil
		}
	}
}

// exchange sends the request to the peer and processes its reply. It returns
// the size of the reply and whether the peer did not provide any data.
func (n *Node) exchange(ctx context.Context, peer Peer, request sync.Request, stats *sync.Stats) (uint64, bool, error) {
	switch r := request.(type) {
	case *sync.GetLeavesRequest:
		reply, err := peer.GetStateLeaves(ctx, r)
		if err != nil {
			return 0, false, fmt.Errorf("failed to get leaves of %v; %w", r.Prefix, err)
		}
		size := reply.ByteSize()
		stats.NumReplies++
		stats.ReplyTotalBytes += size
		stats.ReplyTotalLeaves += uint64(len(reply.Leaves))
		stats.ReplyTotalNodes += uint64(len(reply.Proof))
		switch reply.Status {
		case sync.StatusDontHaveData:
			stats.NumDontHaveData++
			n.log.Debug("peer does not have leaves", zap.Stringer("prefix", r.Prefix))
			return size, true, nil
		case sync.StatusTooManyLeaves:
			stats.NumTooManyLeaves++
		}
		n.mu.Lock()
		err = n.state.ProcessLeavesReply(r.Prefix, &reply)
		n.mu.Unlock()
		if err != nil {
			return size, false, fmt.Errorf("failed to process leaves of %v; %w", r.Prefix, err)
		}
		return size, false, nil

	case *sync.GetNodeRequest:
		reply, err := peer.GetStateNodes(ctx, r)
		if err != nil {
			return 0, false, fmt.Errorf("failed to get %d nodes; %w", len(r.Prefixes), err)
		}
		if reply == nil {
			stats.NumDontHaveData++
			n.log.Debug("peer does not have nodes", zap.Int("nodes", len(r.Prefixes)))
			return 0, true, nil
		}
		size := reply.ByteSize()
		stats.NumReplies++
		stats.ReplyTotalBytes += size
		for _, proof := range reply.Nodes {
			if proof != nil {
				stats.ReplyTotalNodes++
			}
		}
		n.mu.Lock()
		err = n.state.ProcessNodeReply(r, reply)
		n.mu.Unlock()
		if err != nil {
			return size, false, fmt.Errorf("failed to process %d nodes; %w", len(r.Prefixes), err)
		}
		return size, false, nil
	}
	return 0, false, fmt.Errorf("unsupported request type %T", request)
}

// GetStateLeaves serves a leaves request from the local state.
func (n *Node) GetStateLeaves(_ context.Context, request *sync.GetLeavesRequest) (sync.LeavesReply, error) {
	n.metrics.served(request)
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.GetLeaves(request)
}

// GetStateNodes serves a node request from the local state.
func (n *Node) GetStateNodes(_ context.Context, request *sync.GetNodeRequest) (*sync.NodeReply, error) {
	n.metrics.served(request)
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.GetNodes(request)
}

// InitFromDb certifies the current content of the database for the block.
func (n *Node) InitFromDb(block uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.state.InitFromDb(block); err != nil {
		return err
	}
	n.log.Debug("initialized from database", zap.Uint32("block", block))
	return nil
}

// Put updates a leaf. The node stops serving data until the next InitFromDb.
func (n *Node) Put(key common.Hash, value []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Put(key, value)
}

func (n *Node) Name() string {
	return n.name
}

// DB returns the bucket holding the leaves of the node.
func (n *Node) DB() bucket.Bucket {
	return n.db
}

// SyncedBlock is the block the node's data is certified for, -1 if none.
func (n *Node) SyncedBlock() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.SyncedBlock()
}

func (n *Node) SyncDone() bool {
	return n.SyncedBlock() >= 0
}

func (n *Node) Phase1SyncDone() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Phase1SyncDone()
}

func (n *Node) RootHash() common.Hash {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.RootHash()
}
