package main

import (
	"github.com/spf13/cobra"

	"github.com/dacapoday/pst"
)

var statCMD = &cobra.Command{
	Use:   "stat",
	Short: "Open every node and report failures",
	Long:  `Walk the node BTree, open every property and table context and report the nodes that fail to decode.`,
	Args:  cobra.NoArgs,
	Run:   statFunc,
}

func statFunc(cmd *cobra.Command, _ []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	var nodes, properties, tables, rows, skipped, failed int
	for entry, err := range db.Nodes() {
		ExitOnErr(cmd, Errf("can't walk node BTree: %w", err))
		nodes++
		typ := entry.ID.Type()
		switch {
		case entry.Data == 0 || !typ.IsTable() && !holdsProperties(entry.ID):
			skipped++
		case typ.IsTable():
			tc, err := db.OpenTable(entry.ID)
			if err == nil {
				for _, err = range tc.Rows() {
					if err != nil {
						break
					}
					rows++
				}
			}
			if err != nil {
				failed++
				cmd.Printf("%v: %v\n", entry.ID, err)
				continue
			}
			tables++
		default:
			pc, err := db.OpenNode(entry.ID)
			if err == nil {
				for _, err = range pc.All() {
					if err != nil {
						break
					}
				}
			}
			if err != nil {
				failed++
				cmd.Printf("%v: %v\n", entry.ID, err)
				continue
			}
			properties++
		}
	}

	cmd.Printf("Nodes: %d\n", nodes)
	cmd.Printf("Property contexts: %d\n", properties)
	cmd.Printf("Table contexts: %d (%d rows)\n", tables, rows)
	cmd.Printf("Without data: %d\n", skipped)
	cmd.Printf("Failed: %d\n", failed)
	printMetrics(cmd, reg)
}

// holdsProperties reports whether nid is a property context: the message
// store, the name-to-id map, folders, messages and attachments.
func holdsProperties(nid pst.NodeID) bool {
	switch nid.Type() {
	case pst.NodeTypeNormalFolder, pst.NodeTypeSearchFolder,
		pst.NodeTypeNormalMessage, pst.NodeTypeAssocMessage,
		pst.NodeTypeAttachment:
		return true
	}
	return nid == pst.NIDMessageStore || nid == pst.NIDNameToIDMap
}
