package udpsrv

// AppendUpper appends src to dst with every ASCII lower-case letter mapped to
// upper case. All other bytes are copied unchanged. src is not modified.
func AppendUpper(dst, src []byte) []byte {
	for _, c := range src {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}

// Upper returns an upper-cased copy of p.
func Upper(p []byte) []byte {
	return AppendUpper(make([]byte, 0, len(p)), p)
}
