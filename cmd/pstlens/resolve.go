package main

import (
	"github.com/spf13/cobra"
)

var resolveCMD = &cobra.Command{
	Use:   "resolve <entryid|nid>",
	Short: "Resolve an EntryID or a hex NodeID",
	Long:  `Resolve the hex form of a 24-byte EntryID, or a bare hex NodeID, to the node it refers to.`,
	Args:  cobra.ExactArgs(1),
	Run:   resolveFunc,
}

func resolveFunc(cmd *cobra.Command, args []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	nid, err := db.ResolveEntryIDString(args[0])
	ExitOnErr(cmd, Errf("can't resolve: %w", err))
	entry, err := db.Node(nid)
	ExitOnErr(cmd, err)
	entryID, err := db.EntryID(nid)
	ExitOnErr(cmd, err)

	cmd.Printf("Node: %v (%v)\n", nid, nid.Type())
	cmd.Printf("Parent: %v\n", entry.Parent)
	cmd.Printf("EntryID: %x\n", entryID)
	printMetrics(cmd, reg)
}
