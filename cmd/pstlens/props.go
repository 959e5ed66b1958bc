package main

import (
	"github.com/spf13/cobra"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/ltp"
)

var vOwner string

var propsCMD = &cobra.Command{
	Use:   "props <nid>",
	Short: "Print the properties of a node",
	Long:  `Print the property context of a node, or of a subnode with --owner.`,
	Args:  cobra.ExactArgs(1),
	Run:   propsFunc,
}

func init() {
	propsCMD.Flags().StringVar(&vOwner, "owner", "", "node owning the subnode")
}

func propsFunc(cmd *cobra.Command, args []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	nid, err := parseNodeID(args[0])
	ExitOnErr(cmd, err)

	var pc *ltp.PropertyContext
	if vOwner != "" {
		var owner pst.NodeID
		owner, err = parseNodeID(vOwner)
		ExitOnErr(cmd, err)
		pc, err = db.OpenSubnode(owner, nid)
	} else {
		pc, err = db.OpenNode(nid)
	}
	ExitOnErr(cmd, Errf("can't open property context: %w", err))

	for v, err := range pc.All() {
		ExitOnErr(cmd, Errf("can't read property: %w", err))
		cmd.Printf("%-40s %s\n", tagName(db, v.Tag), display(v.String(), 100))
	}
	printMetrics(cmd, reg)
}
