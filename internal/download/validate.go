package download

import (
	"bytes"
	"os"
)

// Raw-file validity checks. The source publishes no checksums, so the
// strictest available check is the TIFF magic header.
const (
	VerifyNone  = "none"  // non-zero size only
	VerifyMagic = "magic" // non-zero size + TIFF magic bytes
)

var tiffMagics = [][]byte{
	{0x49, 0x49, 0x2A, 0x00}, // little-endian
	{0x4D, 0x4D, 0x00, 0x2A}, // big-endian
}

// ValidRaw reports whether a complete raw tile exists at path under the
// given verification mode.
func ValidRaw(path, verify string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	if verify == VerifyMagic {
		return hasTIFFMagic(path)
	}
	return true
}

func hasTIFFMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, 4)
	if _, err := f.Read(head); err != nil {
		return false
	}
	for _, magic := range tiffMagics {
		if bytes.Equal(head, magic) {
			return true
		}
	}
	return false
}
