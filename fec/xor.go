package fec

// xorBytes XORs src into dst. src may be shorter than dst; the missing tail is
// treated as zero padding.
func xorBytes(dst, src []byte) {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
