package facematch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName brings a display name into NFC form and trims surrounding space.
// Filenames on some filesystems (macOS) are stored decomposed, so "Jiří.jpg"
// must produce the same name as a registration typed as "Jiří".
// Case is preserved: names are case-sensitive.
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

// ValidName reports whether a normalized name can be used as a gallery key and
// reference image file stem.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
