package gcode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	rx      = regexp.MustCompile(`^([A-Z][0-9.\-]+)+$`)
	rxSplit = regexp.MustCompile(`[A-Z][0-9.\-]+`)
)

// ParseBlock parses a single line of G-code. Comments after ';' and spaces
// are dropped. An empty line returns a nil Block.
func ParseBlock(s string) (Block, error) {
	s = strings.SplitN(s, ";", 2)[0]
	s = strings.Replace(s, " ", "", -1)
	s = strings.TrimSpace(s)
	s = strings.ToUpper(s)
	if s == "" {
		return nil, nil
	}

	if !rx.MatchString(s) {
		return nil, errors.New("invalid or unhandled line: " + s)
	}

	codes := rxSplit.FindAllString(s, -1)
	res := make(Block, len(codes))
	for i, c := range codes {
		_, err := fmt.Sscanf(c, "%c%f", &res[i].W, &res[i].Arg)
		if err != nil {
			return nil, fmt.Errorf("word %q: %w", c, err)
		}
	}
	return res, nil
}
