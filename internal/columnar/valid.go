package columnar

import (
	"bytes"
	"os"
)

var parquetMagic = []byte("PAR1")

// Valid reports whether path holds a structurally complete Parquet file:
// non-zero size with the PAR1 magic at both ends. A file that passes was
// closed cleanly, which is the conversion-complete marker for a tile.
func Valid(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil || info.Size() < int64(2*len(parquetMagic)) {
		return false
	}

	head := make([]byte, len(parquetMagic))
	if _, err := f.ReadAt(head, 0); err != nil || !bytes.Equal(head, parquetMagic) {
		return false
	}
	tail := make([]byte, len(parquetMagic))
	if _, err := f.ReadAt(tail, info.Size()-int64(len(parquetMagic))); err != nil {
		return false
	}
	return bytes.Equal(tail, parquetMagic)
}
