package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dacapoday/pst/ltp"
)

var browseCMD = &cobra.Command{
	Use:   "browse <nid>",
	Short: "Browse the rows of a table interactively",
	Long: `Browse the rows of a table context in the terminal.

	j/↓    scroll down
	k/↑    scroll up
	g      jump to first
	G      jump to last
	/      jump to row id (hex)
	q/Esc  quit`,
	Args: cobra.ExactArgs(1),
	Run:  browseFunc,
}

func init() {
	browseCMD.Flags().StringVar(&vOwner, "owner", "", "node owning the subnode")
}

func browseFunc(cmd *cobra.Command, args []string) {
	db, _ := openStore(cmd)
	defer db.Close()

	tc := openTable(cmd, db, args[0])

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	ExitOnErr(cmd, err)
	defer term.Restore(fd, oldState)

	v := &viewer{table: tc, title: args[0], fd: fd}
	v.updateSize()

	fmt.Print("\033[?25l\033[2J")             // hide cursor, clear screen once
	defer fmt.Print("\033[?25h\033[2J\033[H") // show cursor, clear screen

	reader := bufio.NewReader(os.Stdin)
	for {
		v.updateSize()
		v.render()

		b, err := reader.ReadByte()
		if err != nil {
			break
		}

		v.status = "" // clear status on any input

		switch b {
		case 'q', 3, 27: // q, Ctrl+C, Esc
			if b == 27 && reader.Buffered() > 0 {
				// escape sequence
				b2, _ := reader.ReadByte()
				if b2 == '[' {
					b3, _ := reader.ReadByte()
					switch b3 {
					case 'A': // up
						v.scroll(-1)
					case 'B': // down
						v.scroll(1)
					case '5': // page up
						reader.ReadByte()
						v.scroll(-v.lines() + 1)
					case '6': // page down
						reader.ReadByte()
						v.scroll(v.lines() - 1)
					}
				}
				continue
			}
			return
		case 'j':
			v.scroll(1)
		case 'k':
			v.scroll(-1)
		case 'g':
			v.top = 0
		case 'G':
			v.top = max(0, v.table.RowCount()-v.lines())
		case '/':
			v.search(reader)
		}
	}
}

type viewer struct {
	table  *ltp.TableContext
	title  string
	fd     int
	top    int // first row on screen
	width  int
	height int
	status string
}

func (v *viewer) updateSize() {
	w, h, err := term.GetSize(v.fd)
	if err != nil {
		w, h = 80, 24
	}
	v.width, v.height = w, h
}

func (v *viewer) lines() int {
	return v.height - 4 // title + separator + separator + status
}

func (v *viewer) scroll(n int) {
	v.top = max(0, min(v.top+n, v.table.RowCount()-1))
}

func (v *viewer) search(reader *bufio.Reader) {
	fmt.Print("\033[?25h") // show cursor
	fmt.Printf("\033[%d;1H\033[K/", v.height)

	var input []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		if b == 27 || b == 3 { // Esc or Ctrl+C
			fmt.Print("\033[?25l")
			return
		}
		if b == 13 || b == 10 { // Enter
			break
		}
		if b == 127 || b == 8 { // Backspace
			if len(input) > 0 {
				input = input[:len(input)-1]
				fmt.Print("\b \b")
			}
			continue
		}
		if b >= 32 && b < 127 {
			input = append(input, b)
			fmt.Print(string(b))
		}
	}
	fmt.Print("\033[?25l")
	if len(input) == 0 {
		return
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(string(input), "0x"), 16, 32)
	if err != nil {
		v.status = "invalid row id"
		return
	}
	row, err := v.table.FindRow(uint32(id))
	if err != nil {
		v.status = "not found"
		return
	}
	v.top = row.Index
	v.status = fmt.Sprintf("jumped to: %#x", id)
}

func (v *viewer) render() {
	var b strings.Builder

	// move to top (no clear)
	b.WriteString("\033[H")

	fmt.Fprintf(&b, "[ pstlens %s: %d rows ]\033[K\r\n", v.title, v.table.RowCount())
	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	idWidth := 12
	valWidth := max(v.width-idWidth-2, 20)
	for i := range v.lines() {
		if n := v.top + i; n < v.table.RowCount() {
			row, err := v.table.Row(n)
			if err != nil {
				b.WriteString(display(fmt.Sprintf("row %d: %v", n, err), v.width))
			} else {
				fmt.Fprintf(&b, "%-*s", idWidth, fmt.Sprintf("%#x", row.ID))
				b.WriteString(": ")
				b.WriteString(display(rowSummary(row), valWidth))
			}
		} else {
			b.WriteString("~")
		}
		b.WriteString("\033[K\r\n")
	}

	b.WriteString(strings.Repeat("─", v.width))
	b.WriteString("\033[K\r\n")

	pos := ""
	switch {
	case v.top == 0 && v.top+v.lines() >= v.table.RowCount():
		pos = "[all]"
	case v.top == 0:
		pos = "[top]"
	case v.top+v.lines() >= v.table.RowCount():
		pos = "[end]"
	}
	if v.status != "" {
		b.WriteString(" " + v.status + " " + pos)
	} else {
		b.WriteString(" j/k:scroll g/G:jump /:row id q:quit " + pos)
	}
	b.WriteString("\033[K")

	fmt.Print(b.String())
}
