package gcode

import (
	"strconv"
	"strings"
)

// Word is a single letter/argument pair such as G1 or X100.
type Word struct {
	W   byte
	Arg float64
}

func (w Word) IsAxis() bool {
	switch w.W {
	case 'X', 'Y', 'Z':
		return true
	}
	return false
}

func (w Word) IsValid() bool {
	return w.W >= 'A' && w.W <= 'Z'
}

// isCode reports whether w is a G or M code word.
func (w Word) isCode() bool { return w.W == 'G' || w.W == 'M' }

func formatFloat(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
	}
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// String formats w for the wire. Whole G and M codes below 10 are zero padded
// ("G01"), axis and parameter values are trimmed to at most 3 decimals.
func (w Word) String() string {
	if w.isCode() && w.Arg >= 0 && w.Arg < 10 && w.Arg == float64(int(w.Arg)) {
		return string(w.W) + "0" + strconv.Itoa(int(w.Arg))
	}
	return string(w.W) + formatFloat(w.Arg, 3)
}
