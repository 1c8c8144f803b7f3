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
	"testing"

	"github.com/urfave/cli/v2"
)

func newTestApp() *cli.App {
	return &cli.App{
		Name:     "sync",
		Flags:    []cli.Flag{&logLevelFlag},
		Commands: []*cli.Command{&hintsCommand, &emulateCommand},
	}
}

func TestHints_PrintsParameters(t *testing.T) {
	args := []string{"sync", "hints", "--leaves", "1000000", "--max-memory", "16MB"}
	if err := newTestApp().Run(args); err != nil {
		t.Errorf("failed to print hints: %v", err)
	}
}

func TestHints_RejectsInvalidSizes(t *testing.T) {
	args := []string{"sync", "hints", "--max-memory", "lots"}
	if err := newTestApp().Run(args); err == nil {
		t.Errorf("expected invalid size to be rejected")
	}
}

func TestEmulate_LeechersConvergeInMemory(t *testing.T) {
	args := []string{
		"sync", "--log-level", "error", "emulate",
		"--accounts", "2000",
		"--leechers", "3",
		"--blocks", "3",
		"--new-accounts", "50",
		"--budget", "16KB",
		"--max-memory", "1MB",
	}
	if err := newTestApp().Run(args); err != nil {
		t.Errorf("emulation failed: %v", err)
	}
}

func TestEmulate_LeechersConvergeOnLevelDb(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"sync", "--log-level", "error", "emulate",
		"--accounts", "1000",
		"--leechers", "2",
		"--blocks", "2",
		"--new-accounts", "20",
		"--max-memory", "1MB",
		"--dir", dir,
	}
	if err := newTestApp().Run(args); err != nil {
		t.Fatalf("emulation failed: %v", err)
	}
	// a second run continues with the recorded miner state
	if err := newTestApp().Run(args); err != nil {
		t.Errorf("resumed emulation failed: %v", err)
	}
}
