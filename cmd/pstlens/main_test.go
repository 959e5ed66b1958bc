package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/pstfixture"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	vOwner, vLimit = "", 0
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&out)
	command.SetArgs(args)
	require.NoError(t, command.Execute(), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	mailbox := pstfixture.NewMailbox()
	_, image := mailbox.Build(pst.Unicode, header.CryptPermute)
	path := filepath.Join(t.TempDir(), "mailbox.pst")
	require.NoError(t, os.WriteFile(path, image, 0o600))

	out := run(t, "header", "-f", path)
	require.Contains(t, out, "Format: Unicode")
	require.Contains(t, out, "Crypt method: permute")
	require.Contains(t, out, mailbox.RecordKey.String())

	out = run(t, "dlist", "-f", path)
	require.Contains(t, out, "Backfill complete: true")
	require.Contains(t, out, "Current page: 1")
	require.Contains(t, out, "Entries: 2")
	require.Contains(t, out, "free slots 4095")

	out = run(t, "nodes", "-f", path)
	require.Contains(t, out, "0x144")

	out = run(t, "props", "-f", path, "0x144")
	require.Contains(t, out, `"Hello"`)
	require.Contains(t, out, pstfixture.PSInternetHeads.String()+`/"x-mailer"`)

	out = run(t, "props", "-f", path, "--owner", "0x144", "0x8025")
	require.Contains(t, out, `"notes.txt"`)

	out = run(t, "table", "-f", path, "0x12e")
	require.Contains(t, out, "Rows: 1")
	require.Contains(t, out, "Row 0 (id 0x144)")

	entryID := hex.EncodeToString(pstfixture.EntryID(mailbox.RecordKey, pstfixture.NIDMessage))
	out = run(t, "resolve", "-f", path, entryID)
	require.Contains(t, out, "Node: 0x144")
	require.Contains(t, out, "Parent: 0x122")

	out = run(t, "named", "-f", path)
	require.Contains(t, out, "Named properties: 5")

	out = run(t, "stat", "-f", path, "--metrics")
	require.Contains(t, out, "Failed: 0")
	require.Contains(t, out, "pst_block_reads_total")
}
