package slug

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func FromName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "product"
	}
	return s
}

// maxSKUStem leaves room for the suffix inside the 64-char sku column.
const maxSKUStem = 48

// SKU derives an upper-case stock keeping unit from a product name with a
// random suffix, e.g. "Yirgacheffe Coffee 1kg" -> "YIRGACHEFFE-COFFEE-1KG-3F9A".
func SKU(name string) string {
	stem := strings.ToUpper(FromName(name))
	if len(stem) > maxSKUStem {
		stem = strings.TrimRight(stem[:maxSKUStem], "-")
	}
	b := make([]byte, 2)
	_, _ = rand.Read(b)
	return stem + "-" + strings.ToUpper(hex.EncodeToString(b))
}
