// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegister_CancelsContextWhenInterrupted(t *testing.T) {
	ctx := Register(context.Background(), zap.NewNop())
	if IsCancelled(ctx) {
		t.Fatalf("context should not be canceled before the signal")
	}
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("failed to create a SIGINT signal: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Errorf("context was not canceled by the signal")
	}
}

func TestRegister_ParentCancellationIsForwarded(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := Register(parent, zap.NewNop())
	cancel()
	<-ctx.Done()
	if !IsCancelled(ctx) {
		t.Errorf("context should be canceled with its parent")
	}
}

func TestIsCancelled_ReportsContextState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if IsCancelled(ctx) {
		t.Fatal("context was not canceled but func returned true")
	}
	cancel()
	if !IsCancelled(ctx) {
		t.Fatalf("context was canceled but func returned false")
	}
}
