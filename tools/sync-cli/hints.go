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
	"fmt"

	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/c2h5oh/datasize"
	"github.com/urfave/cli/v2"
)

var (
	numLeavesFlag = cli.Uint64Flag{
		Name:  "leaves",
		Usage: "the expected number of leaves of the state",
		Value: sync.DefaultHints().NumLeaves,
	}
	maxMemoryFlag = cli.StringFlag{
		Name:  "max-memory",
		Usage: "the memory available for the node tree",
		Value: sync.DefaultHints().MaxMemory.String(),
	}
	replySizeFlag = cli.StringFlag{
		Name:  "reply-size",
		Usage: "the approximate maximum size of a reply",
		Value: sync.DefaultHints().ApproxMaxReplySize.String(),
	}
	changesPerBlockFlag = cli.Uint64Flag{
		Name:  "changes-per-block",
		Usage: "the expected number of modified leaves per block",
		Value: sync.DefaultHints().ChangesPerBlock,
	}
)

var hintsCommand = cli.Command{
	Action: printHints,
	Name:   "hints",
	Usage:  "prints the sync parameters derived from the expected data set",
	Flags: []cli.Flag{
		&numLeavesFlag,
		&maxMemoryFlag,
		&replySizeFlag,
		&changesPerBlockFlag,
	},
}

func parseHints(ctx *cli.Context) (sync.Hints, error) {
	hints := sync.DefaultHints()
	maxMemory, err := parseSize(ctx, &maxMemoryFlag)
	if err != nil {
		return hints, err
	}
	replySize, err := parseSize(ctx, &replySizeFlag)
	if err != nil {
		return hints, err
	}
	hints.MaxMemory = maxMemory
	hints.ApproxMaxReplySize = replySize
	hints.NumLeaves = ctx.Uint64(numLeavesFlag.Name)
	hints.ChangesPerBlock = ctx.Uint64(changesPerBlockFlag.Name)
	return hints, nil
}

func printHints(ctx *cli.Context) error {
	hints, err := parseHints(ctx)
	if err != nil {
		return err
	}
	depth := hints.Depth()
	fmt.Printf("Leaves:                %d\n", hints.NumLeaves)
	fmt.Printf("Changes per block:     %d\n", hints.ChangesPerBlock)
	fmt.Printf("Tree depth:            %d (optimal %d, fitting in memory %d)\n", depth, hints.OptimalPhase2Depth(), hints.DepthToFitInMemory())
	fmt.Printf("Phase 1 depth:         %d (optimal %d)\n", hints.Phase1Depth(), hints.OptimalPhase1Depth())
	fmt.Printf("Tree memory:           %s\n", datasize.ByteSize(hints.TreeSizeInBytes(depth)).HumanReadable())
	fmt.Printf("Max leaves per reply:  %d\n", hints.MaxLeavesPerReply())
	fmt.Printf("Phase 1 reply overhead: %.2f%%\n", 100*hints.InfBandwidthReplyOverhead())
	return nil
}
