package main

import (
	"github.com/spf13/cobra"
)

var dlistCMD = &cobra.Command{
	Use:   "dlist",
	Short: "Print the density list page",
	Args:  cobra.NoArgs,
	Run:   dlistFunc,
}

func dlistFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	dl, err := db.DensityList()
	ExitOnErr(cmd, Errf("can't read density list: %w", err))
	cmd.Printf("Backfill complete: %v\n", dl.BackfillComplete())
	cmd.Printf("Current page: %d\n", dl.CurrentPage())
	cmd.Printf("Entries: %d\n", dl.Len())
	for i, entry := range dl.Entries() {
		cmd.Printf("%4d  page %-8d free slots %d\n", i, entry.Page(), entry.FreeSlots())
	}
	printMetrics(cmd, reg)
}
