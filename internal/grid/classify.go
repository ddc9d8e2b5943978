package grid

import "strings"

// SheetType tags a worksheet by the product category its name encodes.
type SheetType string

const (
	SheetFinished     SheetType = "F"
	SheetMaterial     SheetType = "M"
	SheetComponent    SheetType = "C"
	SheetPackaging    SheetType = "P"
	SheetUnclassified SheetType = ""
)

// Classify derives the sheet type from its name. Matching is
// case-insensitive and prefix-based; the packaging match is a bare "P"
// so names like "Packaging" and "P Pouch" both qualify.
func Classify(sheetName string) SheetType {
	upper := strings.ToUpper(strings.TrimSpace(sheetName))
	switch {
	case strings.HasPrefix(upper, "F-"):
		return SheetFinished
	case strings.HasPrefix(upper, "M-"):
		return SheetMaterial
	case strings.HasPrefix(upper, "C-"):
		return SheetComponent
	case strings.HasPrefix(upper, "P"):
		return SheetPackaging
	default:
		return SheetUnclassified
	}
}

// Classified reports whether the sheet carries a recognized prefix.
func (t SheetType) Classified() bool { return t != SheetUnclassified }

// String returns the single-letter tag, or "unclassified".
func (t SheetType) String() string {
	if t == SheetUnclassified {
		return "unclassified"
	}
	return string(t)
}
