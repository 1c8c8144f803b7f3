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
	context "context"
	reflect "reflect"

	sync "github.com/Fantom-foundation/statesync/database/sync"
	gomock "go.uber.org/mock/gomock"
)

// MockPeer is a mock of Peer interface.
type MockPeer struct {
	ctrl     *gomock.Controller
	recorder *MockPeerMockRecorder
}

// MockPeerMockRecorder is the mock recorder for MockPeer.
type MockPeerMockRecorder struct {
	mock *MockPeer
}

// NewMockPeer creates a new mock instance.
func NewMockPeer(ctrl *gomock.Controller) *MockPeer {
	mock := &MockPeer{ctrl: ctrl}
	mock.recorder = &MockPeerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPeer) EXPECT() *MockPeerMockRecorder {
	return m.recorder
}

// GetStateLeaves mocks base method.
func (m *MockPeer) GetStateLeaves(ctx context.Context, request *sync.GetLeavesRequest) (sync.LeavesReply, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetStateLeaves", ctx, request)
	ret0, _ := ret[0].(sync.LeavesReply)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetStateLeaves indicates an expected call of GetStateLeaves.
func (mr *MockPeerMockRecorder) GetStateLeaves(ctx, request any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetStateLeaves", reflect.TypeOf((*MockPeer)(nil).GetStateLeaves), ctx, request)
}

// GetStateNodes mocks base method.
func (m *MockPeer) GetStateNodes(ctx context.Context, request *sync.GetNodeRequest) (*sync.NodeReply, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetStateNodes", ctx, request)
	ret0, _ := ret[0].(*sync.NodeReply)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetStateNodes indicates an expected call of GetStateNodes.
func (mr *MockPeerMockRecorder) GetStateNodes(ctx, request any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetStateNodes", reflect.TypeOf((*MockPeer)(nil).GetStateNodes), ctx, request)
}
