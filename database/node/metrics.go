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
	"errors"

	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "statesync"

var (
	_ syncMetrics = noMetrics{}
	_ syncMetrics = (*metrics)(nil)
)

// syncMetrics receives the traffic of every sync round of a node.
type syncMetrics interface {
	record(delta *sync.Stats)
	served(request sync.Request)
}

type noMetrics struct{}

func (noMetrics) record(*sync.Stats)  {}
func (noMetrics) served(sync.Request) {}

type metrics struct {
	requests       prometheus.Counter
	requestBytes   prometheus.Counter
	replies        prometheus.Counter
	replyBytes     prometheus.Counter
	replyLeaves    prometheus.Counter
	replyNodes     prometheus.Counter
	dontHaveData   prometheus.Counter
	tooManyLeaves  prometheus.Counter
	servedRequests *prometheus.CounterVec
}

// newMetrics registers the counters of the named node. Without a registerer
// all observations are dropped.
func newMetrics(name string, reg prometheus.Registerer) (syncMetrics, error) {
	if reg == nil {
		return noMetrics{}, nil
	}
	labels := prometheus.Labels{"node": name}
	counter := func(metric, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &metrics{
		requests:      counter("requests_total", "number of sync requests sent"),
		requestBytes:  counter("request_bytes_total", "cumulative size of sync requests sent"),
		replies:       counter("replies_total", "number of sync replies received"),
		replyBytes:    counter("reply_bytes_total", "cumulative size of sync replies received"),
		replyLeaves:   counter("reply_leaves_total", "number of leaves received"),
		replyNodes:    counter("reply_nodes_total", "number of node proofs received"),
		dontHaveData:  counter("dont_have_data_total", "number of requests the peer could not serve"),
		tooManyLeaves: counter("too_many_leaves_total", "number of leaves replies exceeding the size limit"),
		servedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "served_requests_total",
			Help:        "number of requests served to other nodes",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
	err := errors.Join(
		reg.Register(m.requests),
		reg.Register(m.requestBytes),
		reg.Register(m.replies),
		reg.Register(m.replyBytes),
		reg.Register(m.replyLeaves),
		reg.Register(m.replyNodes),
		reg.Register(m.dontHaveData),
		reg.Register(m.tooManyLeaves),
		reg.Register(m.servedRequests),
	)
	return m, err
}

func (m *metrics) record(delta *sync.Stats) {
	m.requests.Add(float64(delta.NumRequests))
	m.requestBytes.Add(float64(delta.RequestTotalBytes))
	m.replies.Add(float64(delta.NumReplies))
	m.replyBytes.Add(float64(delta.ReplyTotalBytes))
	m.replyLeaves.Add(float64(delta.ReplyTotalLeaves))
	m.replyNodes.Add(float64(delta.ReplyTotalNodes))
	m.dontHaveData.Add(float64(delta.NumDontHaveData))
	m.tooManyLeaves.Add(float64(delta.NumTooManyLeaves))
}

func (m *metrics) served(request sync.Request) {
	switch request.(type) {
	case *sync.GetLeavesRequest:
		m.servedRequests.WithLabelValues("leaves").Inc()
	case *sync.GetNodeRequest:
		m.servedRequests.WithLabelValues("nodes").Inc()
	}
}
