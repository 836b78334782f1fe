// Package palette maps arbitrary tile colors onto the fixed pastel palette.
package palette

import (
	"regexp"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colors is the tile palette in priority order. Distance ties resolve to
// the lower index.
var Colors = [8]string{
	"#FFB3BA", // pink
	"#FFCCCB", // light pink
	"#FFFFBA", // yellow
	"#BAE1BA", // green
	"#BAC7FF", // blue
	"#E0BBE4", // purple
	"#FFDAB9", // peach
	"#B4E7FF", // cyan
}

// Default is the fallback for empty or malformed colors.
const Default = "#FFB3BA"

var hexRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type rgb struct{ r, g, b int }

// Contains reports whether color is a palette entry (case-insensitive).
func Contains(color string) bool {
	return indexOf(color) >= 0
}

func indexOf(color string) int {
	for i, c := range Colors {
		if strings.EqualFold(c, color) {
			return i
		}
	}
	return -1
}

// Normalize returns color if it is already in the palette, otherwise the
// nearest palette entry by squared RGB distance. It never fails: malformed
// input yields Default.
func Normalize(color string) string {
	color = strings.TrimSpace(color)
	if i := indexOf(color); i >= 0 {
		return Colors[i]
	}
	c, ok := parseHex(color)
	if !ok {
		return Default
	}
	best, bestDist := 0, -1
	for i, p := range Colors {
		pc, _ := parseHex(p)
		d := distSq(c, pc)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return Colors[best]
}

// TextColor returns black or white, whichever reads better on color.
func TextColor(color string) string {
	c, ok := parseHex(strings.TrimSpace(color))
	if !ok {
		c, _ = parseHex(Default)
	}
	// 0.299R + 0.587G + 0.114B >= 128, in integer thousandths.
	if 299*c.r+587*c.g+114*c.b >= 128000 {
		return "#000000"
	}
	return "#ffffff"
}

func parseHex(s string) (rgb, bool) {
	if !hexRe.MatchString(s) {
		return rgb{}, false
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return rgb{}, false
	}
	r, g, b := c.RGB255()
	return rgb{r: int(r), g: int(g), b: int(b)}, true
}

func distSq(a, b rgb) int {
	dr, dg, db := a.r-b.r, a.g-b.g, a.b-b.b
	return dr*dr + dg*dg + db*db
}
