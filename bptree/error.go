package bptree

import "github.com/dacapoday/pst"

var (
	ErrIndexCorrupt = pst.ErrIndexCorrupt
	ErrNodeNotFound = pst.ErrNodeNotFound
)
