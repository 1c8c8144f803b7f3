// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	reflect "reflect"

	mpt "github.com/Fantom-foundation/statesync/database/mpt"
	sync "github.com/Fantom-foundation/statesync/database/sync"
	gomock "go.uber.org/mock/gomock"
)

// MockProofVerifier is a mock of ProofVerifier interface.
type MockProofVerifier struct {
	ctrl     *gomock.Controller
	recorder *MockProofVerifierMockRecorder
}

// MockProofVerifierMockRecorder is the mock recorder for MockProofVerifier.
type MockProofVerifierMockRecorder struct {
	mock *MockProofVerifier
}

// NewMockProofVerifier creates a new mock instance.
func NewMockProofVerifier(ctrl *gomock.Controller) *MockProofVerifier {
	mock := &MockProofVerifier{ctrl: ctrl}
	mock.recorder = &MockProofVerifierMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProofVerifier) EXPECT() *MockProofVerifierMockRecorder {
	return m.recorder
}

// VerifyLeaves mocks base method.
func (m *MockProofVerifier) VerifyLeaves(prefix mpt.Prefix, reply *sync.LeavesReply) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyLeaves", prefix, reply)
	ret0, _ := ret[0].(error)
	return ret0
}

// VerifyLeaves indicates an expected call of VerifyLeaves.
func (mr *MockProofVerifierMockRecorder) VerifyLeaves(prefix, reply any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyLeaves", reflect.TypeOf((*MockProofVerifier)(nil).VerifyLeaves), prefix, reply)
}

// VerifyNodes mocks base method.
func (m *MockProofVerifier) VerifyNodes(request *sync.GetNodeRequest, reply *sync.NodeReply) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyNodes", request, reply)
	ret0, _ := ret[0].(error)
	return ret0
}

// VerifyNodes indicates an expected call of VerifyNodes.
func (mr *MockProofVerifierMockRecorder) VerifyNodes(request, reply any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyNodes", reflect.TypeOf((*MockProofVerifier)(nil).VerifyNodes), request, reply)
}
