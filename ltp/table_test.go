package ltp

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
)

var tableColumns = []pstfixture.Column{
	{ID: 0x3001, Type: pstfixture.TypeUnicode},
	{ID: 0x0E06, Type: pstfixture.TypeTime},
	{ID: 0x0E07, Type: pstfixture.TypeInt32},
	{ID: 0x0E1F, Type: pstfixture.TypeBool},
	{ID: 0x0017, Type: pstfixture.TypeInt16},
	{ID: 0x0FF9, Type: pstfixture.TypeBinary},
	{ID: 0x6801, Type: pstfixture.TypeMulti | pstfixture.TypeInt32},
}

var received = time.Date(2023, 11, 2, 8, 30, 0, 0, time.UTC)

func tableRows(n int) []pstfixture.Row {
	rows := make([]pstfixture.Row, n)
	for i := range rows {
		values := []pstfixture.Property{
			pstfixture.String(0x3001, fmt.Sprintf("row %d", i)),
			pstfixture.Time(0x0E06, received.Add(time.Duration(i)*time.Hour)),
			pstfixture.Int32(0x0E07, int32(i)),
			pstfixture.Bool(0x0E1F, i%2 == 0),
		}
		if i%3 == 0 {
			values = append(values, pstfixture.Int16(0x0017, int16(-i)))
		}
		if i%5 == 0 {
			values = append(values, pstfixture.MultiInt32(0x6801, int32(i), int32(i+1)))
		}
		// ids are not in row order
		rows[i] = pstfixture.Row{ID: uint32(0x200000 + (i*7919)%n*32 + 4), Values: values}
	}
	return rows
}

func tableContext(t *testing.T, format pst.Format, rows []pstfixture.Row, rowsPerBlock int, setup ...func(*pstfixture.Builder)) *TableContext {
	t.Helper()
	b := pstfixture.New(format, header.CryptCyclic)
	b.TreeFanout = 5
	for _, f := range setup {
		f(b)
	}
	b.AddNode(testNID, 0, b.TableContext(tableColumns, rows, rowsPerBlock))
	tc, err := OpenTableContext(store(t, b, testNID))
	require.NoError(t, err)
	return tc
}

func checkRow(t *testing.T, want pstfixture.Row, i int, row Row) {
	t.Helper()
	require.Equal(t, want.ID, row.ID)
	require.Equal(t, i, row.Index)

	v, ok := row.Get(ColumnRowID)
	require.True(t, ok)
	require.Equal(t, int32(want.ID), v.Value)
	v, ok = row.Get(0x3001)
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("row %d", i), v.Value)
	v, ok = row.Get(0x0E06)
	require.True(t, ok)
	require.True(t, received.Add(time.Duration(i)*time.Hour).Equal(v.Value.(time.Time)))
	v, ok = row.Get(0x0E07)
	require.True(t, ok)
	require.Equal(t, int32(i), v.Value)
	v, ok = row.Get(0x0E1F)
	require.True(t, ok)
	require.Equal(t, i%2 == 0, v.Value)

	v, ok = row.Get(0x0017)
	require.Equal(t, i%3 == 0, ok)
	if ok {
		require.Equal(t, int16(-i), v.Value)
	}
	v, ok = row.Get(0x6801)
	require.Equal(t, i%5 == 0, ok)
	if ok {
		require.Equal(t, []int32{int32(i), int32(i + 1)}, v.Value)
	}
	_, ok = row.Get(0x0FF9)
	require.False(t, ok)
}

func TestTableContext(t *testing.T) {
	for _, format := range formats {
		for _, test := range []struct {
			rows         int
			rowsPerBlock int
			padding      int
		}{
			{0, 0, 0},
			{1, 0, 0},
			{40, 0, 0},    // row matrix in the heap
			{40, 7, 0},    // row matrix in a subnode
			{40, 7, 5},    // blocks end with unused bytes
			{1500, 0, 0},  // full blocks
			{1500, 0, 11}, // full blocks with unused bytes
		} {
			t.Run(fmt.Sprintf("%v/%d/%d/%d", format, test.rows, test.rowsPerBlock, test.padding), func(t *testing.T) {
				rows := tableRows(test.rows)
				tc := tableContext(t, format, rows, test.rowsPerBlock, func(b *pstfixture.Builder) {
					b.RowPadding = test.padding
				})
				require.Equal(t, len(rows), tc.RowCount())

				columns := tc.Columns()
				require.Len(t, columns, len(tableColumns)+2)
				for i := 1; i < len(columns); i++ {
					require.Less(t, columns[i-1].Tag.ID(), columns[i].Tag.ID())
				}

				for i, want := range rows {
					row, err := tc.Row(i)
					require.NoError(t, err)
					checkRow(t, want, i, row)

					row, err = tc.FindRow(want.ID)
					require.NoError(t, err)
					require.Equal(t, i, row.Index)
				}
				_, err := tc.Row(len(rows))
				require.ErrorIs(t, err, ErrRowOutOfRange)
				_, err = tc.Row(-1)
				require.ErrorIs(t, err, ErrRowOutOfRange)
				_, err = tc.FindRow(3)
				require.ErrorIs(t, err, ErrRowOutOfRange)

				for range 2 {
					var n int
					for row, err := range tc.Rows() {
						require.NoError(t, err)
						require.Equal(t, n, row.Index)
						n++
					}
					require.Equal(t, tc.RowCount(), n)
				}
			})
		}
	}
}

func TestTableContextBreak(t *testing.T) {
	tc := tableContext(t, pst.Unicode, tableRows(10), 0)
	var n int
	for _, err := range tc.Rows() {
		require.NoError(t, err)
		if n++; n == 3 {
			break
		}
	}
	require.Equal(t, 3, n)
}

func TestTableContextLargeCell(t *testing.T) {
	text := make([]byte, 0, 9000)
	for len(text) < 9000 {
		text = append(text, "lorem ipsum "...)
	}
	rows := []pstfixture.Row{{ID: 0x24, Values: []pstfixture.Property{
		pstfixture.String(0x3001, string(text)),
		pstfixture.Binary(0x0FF9, nil),
	}}}
	tc := tableContext(t, pst.Unicode, rows, 0)
	row, err := tc.Row(0)
	require.NoError(t, err)
	v, ok := row.Get(0x3001)
	require.True(t, ok)
	require.Equal(t, string(text), v.Value)
	v, ok = row.Get(0x0FF9)
	require.True(t, ok)
	require.Equal(t, []byte{}, v.Value)
}

func TestTableContextCorrupt(t *testing.T) {
	b := pstfixture.New(pst.Unicode, header.CryptNone)
	b.AddNode(testNID, 0, b.PropertyContext([]pstfixture.Property{pstfixture.Int32(0x0E07, 1)}))
	_, err := OpenTableContext(store(t, b, testNID))
	require.ErrorIs(t, err, ErrCorruptTable)

	for name, info := range map[string][]byte{
		"short":   {pstfixture.ClientTable, 0},
		"columns": append([]byte{pstfixture.ClientTable, 4}, make([]byte, 20)...),
		"layout":  {pstfixture.ClientTable, 0, 8, 0, 4, 0, 8, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			b := pstfixture.New(pst.Unicode, header.CryptNone)
			hn := pstfixture.NewHeap(pstfixture.ClientTable, pst.Unicode.MaxBlockData())
			hn.SetUserRoot(hn.Allocate(info))
			b.AddNode(testNID, 0, pstfixture.Content{Data: b.AddSegments(hn.Bytes())})
			_, err := OpenTableContext(store(t, b, testNID))
			require.ErrorIs(t, err, ErrCorruptTable)
		})
	}
}
