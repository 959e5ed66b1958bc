package pst

import "hash/crc32"

// Checksum computes the CRC used by page, block and header trailers.
// It is the IEEE polynomial with a zero seed and no final inversion.
func Checksum(data []byte) uint32 {
	return Update(0, data)
}

// Update continues a checksum started with Checksum.
func Update(crc uint32, data []byte) uint32 {
	return ^crc32.Update(^crc, crc32.IEEETable, data)
}

// Signature computes the 16-bit signature stored in page and block trailers
// from the physical offset and the block id.
func Signature(offset uint64, bid BlockID) uint16 {
	v := uint32(offset) ^ uint32(bid)
	return uint16(v>>16) ^ uint16(v)
}
