package kfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column layout of the cards this package reads and writes
const (
	IDWidth    = 8  // Node and element ids, connectivity
	CoordWidth = 16 // Node coordinates
	CardWidth  = 10 // Part, section and material cards
)

// Node card columns
var nodeColumns = [4][2]int{
	{0, 8},   // nid
	{8, 24},  // x
	{24, 40}, // y
	{40, 56}, // z
}

// column returns line[start:end), clipped to the line length
func column(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

func parseIntField(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Integer fields are sometimes written as "12." by other tools
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		v = int(f)
	}
	return v, nil
}

func parseFloatField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	// Fortran double precision exponents
	s = strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'E'
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// formatInt right aligns v in a field of the given width
func formatInt(v, width int) (string, error) {
	s := strconv.Itoa(v)
	if len(s) > width {
		return "", fmt.Errorf("value %d does not fit in %d columns", v, width)
	}
	return strings.Repeat(" ", width-len(s)) + s, nil
}

// formatFloat returns the most precise representation of v that fits in
// width columns, right aligned
func formatFloat(v float64, width int) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") && len(s)+2 <= width {
		s += ".0"
	}
	for prec := 17; len(s) > width && prec > 0; prec-- {
		s = strconv.FormatFloat(v, 'g', prec, 64)
	}
	if len(s) > width {
		// Only reachable for very narrow fields
		s = strconv.FormatFloat(v, 'E', 0, 64)
	}
	return strings.Repeat(" ", max(width-len(s), 0)) + s
}
