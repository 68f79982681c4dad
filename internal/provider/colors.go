package provider

import (
	"strconv"

	"github.com/canopymail/canopy/internal/taxonomy"
)

// IsValidColor reports whether s is a 6-digit hex color like "#FF0000".
func IsValidColor(s string) bool {
	return taxonomy.IsValidColor(s)
}

// labelColor is a text/background pair from Gmail's fixed label palette.
// Gmail rejects colors outside this palette, so arbitrary hex input is
// snapped to the nearest allowed entry.
type labelColor struct {
	Background string
	Text       string
}

var gmailPalette = []labelColor{
	{"#000000", "#ffffff"},
	{"#434343", "#ffffff"},
	{"#666666", "#ffffff"},
	{"#999999", "#ffffff"},
	{"#cccccc", "#000000"},
	{"#efefef", "#000000"},
	{"#ffffff", "#000000"},
	{"#fb4c2f", "#ffffff"},
	{"#ffad47", "#000000"},
	{"#fad165", "#000000"},
	{"#16a766", "#ffffff"},
	{"#43d692", "#000000"},
	{"#4a86e8", "#ffffff"},
	{"#a479e2", "#ffffff"},
	{"#f691b3", "#000000"},
	{"#f6c5be", "#000000"},
	{"#ffe6c7", "#000000"},
	{"#fef1d1", "#000000"},
	{"#b9e4d0", "#000000"},
	{"#c6f3de", "#000000"},
	{"#c9daf8", "#000000"},
	{"#e4d7f5", "#000000"},
	{"#fcdee8", "#000000"},
	{"#efa093", "#000000"},
	{"#ffd6a2", "#000000"},
	{"#fce8b3", "#000000"},
	{"#89d3b2", "#000000"},
	{"#a0eac9", "#000000"},
	{"#a4c2f4", "#000000"},
	{"#d0bcf1", "#000000"},
	{"#fbc8d9", "#000000"},
	{"#e66550", "#ffffff"},
	{"#ffbc6b", "#000000"},
	{"#fcda83", "#000000"},
	{"#44b984", "#ffffff"},
	{"#68dfa9", "#000000"},
	{"#6d9eeb", "#ffffff"},
	{"#b694e8", "#ffffff"},
	{"#f7a7c0", "#000000"},
	{"#cc3a21", "#ffffff"},
	{"#eaa041", "#ffffff"},
	{"#f2c960", "#000000"},
	{"#149e60", "#ffffff"},
	{"#3dc789", "#000000"},
	{"#3c78d8", "#ffffff"},
	{"#8e63ce", "#ffffff"},
	{"#e07798", "#ffffff"},
	{"#ac2b16", "#ffffff"},
	{"#cf8933", "#ffffff"},
	{"#d5ae49", "#000000"},
	{"#0b804b", "#ffffff"},
	{"#2a9c68", "#ffffff"},
	{"#285bac", "#ffffff"},
	{"#653e9b", "#ffffff"},
	{"#b65775", "#ffffff"},
	{"#822111", "#ffffff"},
	{"#a46a21", "#ffffff"},
	{"#aa8831", "#ffffff"},
	{"#076239", "#ffffff"},
	{"#1a764d", "#ffffff"},
	{"#1c4587", "#ffffff"},
	{"#41236d", "#ffffff"},
	{"#83334c", "#ffffff"},
}

// NearestGmailColor snaps an arbitrary hex color to the closest palette
// entry by RGB distance. ok is false when hex is not a valid 6-digit hex,
// in which case the caller should let Gmail pick its default.
func NearestGmailColor(hex string) (labelColor, bool) {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return labelColor{}, false
	}
	best := gmailPalette[0]
	bestDist := int64(1) << 62
	for _, c := range gmailPalette {
		pr, pg, pb, _ := parseHex(c.Background)
		d := sq(r-pr) + sq(g-pg) + sq(b-pb)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best, true
}

// o365Presets maps Outlook category preset names to their nominal colors.
// Graph folders carry no color themselves; the preset is attached to the
// category metadata created alongside a provisioned folder.
var o365Presets = []struct {
	Name string
	Hex  string
}{
	{"preset0", "#e74856"},  // red
	{"preset1", "#ff8c00"},  // orange
	{"preset2", "#ffab45"},  // peach
	{"preset3", "#fff100"},  // yellow
	{"preset4", "#47d041"},  // green
	{"preset5", "#30c6cc"},  // teal
	{"preset6", "#73aa24"},  // olive
	{"preset7", "#00bcf2"},  // blue
	{"preset8", "#8764b8"},  // purple
	{"preset9", "#f495bf"},  // cranberry
	{"preset10", "#a0aeb2"}, // steel
	{"preset11", "#004b60"}, // dark steel
	{"preset12", "#b1adab"}, // gray
	{"preset13", "#5d5a58"}, // dark gray
	{"preset14", "#000000"}, // black
	{"preset15", "#750b1c"}, // dark red
	{"preset16", "#ca5010"}, // dark orange
	{"preset17", "#ab620d"}, // brown
	{"preset18", "#c19c00"}, // dark yellow
	{"preset19", "#004b1c"}, // dark green
	{"preset20", "#004b50"}, // dark teal
	{"preset21", "#0b6a0b"}, // dark olive
	{"preset22", "#002050"}, // dark blue
	{"preset23", "#32145a"}, // dark purple
	{"preset24", "#5c005c"}, // dark cranberry
}

// HexToO365Color converts an arbitrary hex color to the nearest Outlook
// preset enum value. ok is false for invalid hex.
func HexToO365Color(hex string) (string, bool) {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return "", false
	}
	best := o365Presets[0].Name
	bestDist := int64(1) << 62
	for _, p := range o365Presets {
		pr, pg, pb, _ := parseHex(p.Hex)
		d := sq(r-pr) + sq(g-pg) + sq(b-pb)
		if d < bestDist {
			bestDist = d
			best = p.Name
		}
	}
	return best, true
}

func parseHex(hex string) (r, g, b int64, ok bool) {
	if !IsValidColor(hex) {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseInt(hex[1:], 16, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	return v >> 16 & 0xff, v >> 8 & 0xff, v & 0xff, true
}

func sq(d int64) int64 { return d * d }
