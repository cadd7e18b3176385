package grbl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mastercactapus/grblhub/coord"
)

// Status is one decoded status report.
type Status struct {
	State string
	MPos  coord.Point
	WPos  coord.Point
}

const (
	statusDelims    = "<>,:\r\n"
	parameterDelims = "$=()\r\n"
	bannerDelims    = "\r\n["

	statusTokens = 9
)

// tokenize splits s on any of delims, dropping empty tokens.
func tokenize(s, delims string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
}

func parseNumber(tok string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrParse, tok)
	}
	return v, nil
}

func parseCoords(tokens []string) (p coord.Point, err error) {
	var a [3]float64
	for i, tok := range tokens {
		a[i], err = parseNumber(tok)
		if err != nil {
			return p, err
		}
	}
	return coord.FromAxes(a), nil
}

// ParseStatus decodes a status report of the form
//
//	<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>
//
// Any other field count is a framing error and nothing is returned.
func ParseStatus(data string) (*Status, error) {
	tok := tokenize(data, statusDelims)
	if len(tok) != statusTokens {
		return nil, fmt.Errorf("%w: status has %d fields, want %d: %q", ErrParse, len(tok), statusTokens, data)
	}
	if tok[1] != "MPos" || tok[5] != "WPos" {
		return nil, fmt.Errorf("%w: status labels %q/%q: %q", ErrParse, tok[1], tok[5], data)
	}

	var stat Status
	var err error
	stat.State = tok[0]
	stat.MPos, err = parseCoords(tok[2:5])
	if err != nil {
		return nil, err
	}
	stat.WPos, err = parseCoords(tok[6:9])
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// ParseParameters decodes a "$$" dump of n settings, one
// "$<index>=<value> (<comment>)" line each. Values are returned in the order
// the firmware printed them; the index numbers are not used.
func ParseParameters(data string, n int) ([]float64, error) {
	tok := tokenize(data, parameterDelims)
	if n < 0 || len(tok) != 3*n {
		return nil, fmt.Errorf("%w: parameter dump has %d fields, want %d", ErrParse, len(tok), 3*n)
	}

	params := make([]float64, 0, n)
	for i := 1; i < len(tok); i += 3 {
		v, err := parseNumber(tok[i])
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}

// ParseBanner extracts the firmware version from the reset banner
// "\r\nGrbl 0.8c ['$' for help". The version keeps its trailing space.
func ParseBanner(data string) (string, error) {
	tok := tokenize(data, bannerDelims)
	if len(tok) != 2 {
		return "", fmt.Errorf("%w: banner %q", ErrMismatch, data)
	}
	return tok[0], nil
}

// Compatible reports whether a firmware version matches the known-good
// version exactly or by prefix.
func Compatible(version, known string) bool {
	return version == known || strings.HasPrefix(version, known)
}
