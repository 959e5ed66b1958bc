package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/ltp"
	"github.com/dacapoday/pst/store"
)

var tableCMD = &cobra.Command{
	Use:   "table <nid>",
	Short: "Print the rows of a table",
	Long:  `Print the table context of a node, or of a subnode with --owner.`,
	Args:  cobra.ExactArgs(1),
	Run:   tableFunc,
}

func init() {
	tableCMD.Flags().StringVar(&vOwner, "owner", "", "node owning the subnode")
	tableCMD.Flags().IntVarP(&vLimit, "limit", "n", 0, "number of rows (0 = all)")
}

func openTable(cmd *cobra.Command, db *store.DB, arg string) *ltp.TableContext {
	nid, err := parseNodeID(arg)
	ExitOnErr(cmd, err)

	var tc *ltp.TableContext
	if vOwner != "" {
		var owner pst.NodeID
		owner, err = parseNodeID(vOwner)
		ExitOnErr(cmd, err)
		tc, err = db.OpenSubtable(owner, nid)
	} else {
		tc, err = db.OpenTable(nid)
	}
	ExitOnErr(cmd, Errf("can't open table context: %w", err))
	return tc
}

func tableFunc(cmd *cobra.Command, args []string) {
	db, reg := openStore(cmd)
	defer db.Close()

	tc := openTable(cmd, db, args[0])
	cmd.Printf("Rows: %d, row size: %d\n", tc.RowCount(), tc.RowSize())
	cmd.Println("Columns:")
	for _, column := range tc.Columns() {
		cmd.Printf("\t%-40s offset=%-4d width=%d bit=%d\n", tagName(db, column.Tag), column.Offset, column.Width, column.Bit)
	}

	var n int
	for row, err := range tc.Rows() {
		ExitOnErr(cmd, Errf("can't read row: %w", err))
		cmd.Printf("Row %d (id %#x):\n", row.Index, row.ID)
		for _, v := range row.Values {
			cmd.Printf("\t%-40s %s\n", tagName(db, v.Tag), display(v.String(), 80))
		}
		if n++; vLimit > 0 && n >= vLimit {
			break
		}
	}
	printMetrics(cmd, reg)
}

// rowSummary joins the values of row on one line.
func rowSummary(row ltp.Row) string {
	values := make([]string, 0, len(row.Values))
	for _, v := range row.Values {
		if id := v.Tag.ID(); id == ltp.ColumnRowID || id == ltp.ColumnRowVersion {
			continue
		}
		values = append(values, v.String())
	}
	return strings.Join(values, " | ")
}
