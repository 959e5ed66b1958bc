package overflow

import "github.com/dacapoday/pst"

var (
	ErrCorruptBlock   = pst.ErrCorruptBlock
	ErrTruncatedBlock = pst.ErrTruncatedBlock
)
