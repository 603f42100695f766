package sparse

// PairKey encodes the (row, col) block coordinate of an n×n block matrix into a
// single sortable key. Keys sort row-major.
func PairKey(row, col, n int) uint64 {
	return uint64(row)*uint64(n) + uint64(col)
}

// PairFromKey is the inverse of PairKey.
func PairFromKey(key uint64, n int) (row, col int) {
	return int(key / uint64(n)), int(key % uint64(n))
}
