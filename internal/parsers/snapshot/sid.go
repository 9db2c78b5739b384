package snapshot

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// FormatSID renders a binary security identifier in the usual S-R-I-S...
// string form. Layout: revision(1), subauthority count(1), 48-bit big-endian
// identifier authority, then count little-endian 32-bit subauthorities.
func FormatSID(data []byte) (string, error) {
	if len(data) < 8 {
		return "", types.FormatErrorf("SID truncated: %d bytes", len(data))
	}

	revision := data[0]
	subCount := int(data[1])
	if len(data) < 8+subCount*4 {
		return "", types.FormatErrorf("SID with %d subauthorities truncated: %d bytes", subCount, len(data))
	}

	authority := uint64(0)
	for _, b := range data[2:8] {
		authority = authority<<8 | uint64(b)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "S-%d-%d", revision, authority)
	for i := 0; i < subCount; i++ {
		sub := binary.LittleEndian.Uint32(data[8+i*4 : 12+i*4])
		fmt.Fprintf(&sb, "-%d", sub)
	}
	return sb.String(), nil
}
