package main

import (
	"github.com/spf13/cobra"
)

var vLimit int

var nodesCMD = &cobra.Command{
	Use:   "nodes",
	Short: "List the node BTree",
	Args:  cobra.NoArgs,
	Run:   nodesFunc,
}

var blocksCMD = &cobra.Command{
	Use:   "blocks",
	Short: "List the block BTree",
	Args:  cobra.NoArgs,
	Run:   blocksFunc,
}

func init() {
	nodesCMD.Flags().IntVarP(&vLimit, "limit", "n", 0, "number of entries (0 = all)")
	blocksCMD.Flags().IntVarP(&vLimit, "limit", "n", 0, "number of entries (0 = all)")
}

func nodesFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	var n int
	for entry, err := range db.Nodes() {
		ExitOnErr(cmd, Errf("can't walk node BTree: %w", err))
		cmd.Printf("%-10v %-20v data=%-10v sub=%-10v parent=%v\n",
			entry.ID, entry.ID.Type(), entry.Data, entry.Sub, entry.Parent)
		if n++; vLimit > 0 && n >= vLimit {
			break
		}
	}
	printMetrics(cmd, reg)
}

func blocksFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	var n int
	for entry, err := range db.Blocks() {
		ExitOnErr(cmd, Errf("can't walk block BTree: %w", err))
		kind := "external"
		if entry.Ref.ID.IsInternal() {
			kind = "internal"
		}
		cmd.Printf("%-12v %-8s offset=%#-10x size=%-5d refs=%d\n",
			entry.Ref.ID, kind, entry.Ref.Offset, entry.Size, entry.RefCount)
		if n++; vLimit > 0 && n >= vLimit {
			break
		}
	}
	printMetrics(cmd, reg)
}
