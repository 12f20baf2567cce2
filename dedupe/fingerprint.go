package dedupe

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint returns an order-independent MD5 digest of a translation list.
// It is used to notice objects that changed between detection and write-back.
func Fingerprint(translations []Translation) string {
	lines := make([]string, len(translations))
	for i, t := range translations {
		lines[i] = t.Locale + "\x00" + t.Property + "\x00" + t.Value
	}
	sort.Strings(lines)
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(lines, "\x01"))))
}

// Stale reports whether fresh differs from the detection snapshot of g.
func Stale(g DuplicateGroup, fresh []Translation) bool {
	return Fingerprint(g.Original) != Fingerprint(fresh)
}
