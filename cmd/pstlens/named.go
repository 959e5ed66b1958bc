package main

import (
	"github.com/spf13/cobra"
)

var namedCMD = &cobra.Command{
	Use:   "named",
	Short: "List the named properties",
	Args:  cobra.NoArgs,
	Run:   namedFunc,
}

func namedFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	m, err := db.NamedProperties()
	ExitOnErr(cmd, Errf("can't load named properties: %w", err))
	cmd.Printf("Named properties: %d\n", m.Len())
	for prop, err := range m.All() {
		ExitOnErr(cmd, err)
		cmd.Printf("\t%v\n", prop)
	}
	printMetrics(cmd, reg)
}
