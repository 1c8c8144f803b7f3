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
	"math"
	"testing"

	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_MirrorSyncStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	miner := newTestMiner(t, 500, WithName("miner"), WithRegisterer(reg))
	leecher := newTestLeecher(t, WithName("leecher"), WithRegisterer(reg))

	stats := sync.Stats{}
	if err := leecher.Sync(context.Background(), miner, &stats, math.MaxUint64); err != nil {
		t.Fatalf("failed to sync: %v", err)
	}

	m, ok := leecher.metrics.(*metrics)
	if !ok {
		t.Fatalf("unexpected metrics type %T", leecher.metrics)
	}
	tests := map[string]struct {
		counter prometheus.Counter
		want    uint64
	}{
		"requests":        {m.requests, stats.NumRequests},
		"request bytes":   {m.requestBytes, stats.RequestTotalBytes},
		"replies":         {m.replies, stats.NumReplies},
		"reply bytes":     {m.replyBytes, stats.ReplyTotalBytes},
		"reply leaves":    {m.replyLeaves, stats.ReplyTotalLeaves},
		"reply nodes":     {m.replyNodes, stats.ReplyTotalNodes},
		"dont have data":  {m.dontHaveData, stats.NumDontHaveData},
		"too many leaves": {m.tooManyLeaves, stats.NumTooManyLeaves},
	}
	for name, test := range tests {
		if got := testutil.ToFloat64(test.counter); got != float64(test.want) {
			t.Errorf("unexpected %s, wanted %d, got %v", name, test.want, got)
		}
	}
	if stats.ReplyTotalLeaves < 500 {
		t.Errorf("not all leaves were transferred: %v", &stats)
	}

	served := miner.metrics.(*metrics).servedRequests
	leaves := testutil.ToFloat64(served.WithLabelValues("leaves"))
	nodes := testutil.ToFloat64(served.WithLabelValues("nodes"))
	if leaves+nodes != float64(stats.NumRequests) {
		t.Errorf("unexpected number of served requests, wanted %d, got %v", stats.NumRequests, leaves+nodes)
	}
}

func TestMetrics_NodesNeedDistinctNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	newTestLeecher(t, WithName("a"), WithRegisterer(reg))
	if _, err := NewNode(nil, sync.DefaultHints(), nil, WithDepths(testDepth, testPhase1Depth), WithName("a"), WithRegisterer(reg)); err == nil {
		t.Errorf("registering the same name twice should fail")
	}
}

func TestMetrics_NoRegistererDropsObservations(t *testing.T) {
	leecher := newTestLeecher(t)
	if _, ok := leecher.metrics.(noMetrics); !ok {
		t.Errorf("unexpected metrics type %T", leecher.metrics)
	}
}
