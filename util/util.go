package util

// RoundUp divides n by sz, rounding up.
func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	}
	return m
}

func Min64(n int64, m int64) int64 {
	if n < m {
		return n
	}
	return m
}

func Max64(n int64, m int64) int64 {
	if n > m {
		return n
	}
	return m
}
