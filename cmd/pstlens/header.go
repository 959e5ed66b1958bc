package main

import (
	"github.com/spf13/cobra"
)

var headerCMD = &cobra.Command{
	Use:   "header",
	Short: "Print the file header",
	Args:  cobra.NoArgs,
	Run:   headerFunc,
}

func headerFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	h := db.Header()
	cmd.Printf("Format: %v (version %d, client version %d)\n", h.Format, h.Version, h.ClientVersion)
	cmd.Printf("Crypt method: %v\n", h.CryptMethod)
	cmd.Printf("File EOF: %#x\n", h.Root.FileEOF)
	cmd.Printf("Node BTree: %v\n", h.Root.NodeBTree)
	cmd.Printf("Block BTree: %v\n", h.Root.BlockBTree)
	cmd.Printf("Max BTree depth: %d\n", h.MaxDepth())
	cmd.Printf("Next block: %v, next page: %v\n", h.NextBlock, h.NextPage)

	if key, err := db.RecordKey(); err == nil {
		cmd.Printf("Record key: %v\n", key)
	} else {
		cmd.Printf("Record key: %v\n", err)
	}
	printMetrics(cmd, reg)
}
