package gcode

import (
	"errors"
	"strings"
)

// Block is one line of G-code.
type Block []Word

func (b Block) Arg(w byte) (bool, float64) {
	for _, g := range b {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}

func (b Block) SetArg(w byte, val float64) {
	for i, g := range b {
		if g.W == w {
			b[i].Arg = val
			return
		}
	}
}

func (b Block) Validate() error {
	if len(b) == 0 {
		return errors.New("empty block")
	}
	var checkWord [256]bool
	for _, g := range b {
		if !g.IsValid() {
			return errors.New("invalid word in block")
		}
		if g.W != 'G' && g.W != 'M' && checkWord[g.W] {
			return errors.New("word was repeated in a block")
		}
		checkWord[g.W] = true
	}
	return nil
}

// String renders the block without separators or line terminator.
func (b Block) String() string {
	var sb strings.Builder
	for _, g := range b {
		sb.WriteString(g.String())
	}
	return sb.String()
}

// LinearMove returns a G01 block to the absolute position x,y.
func LinearMove(x, y float64) Block {
	return Block{{W: 'G', Arg: 1}, {W: 'X', Arg: x}, {W: 'Y', Arg: y}}
}

// RapidMove returns a G00 block by x,y. The controller firmware treats G00 as
// a move relative to the current position.
func RapidMove(x, y float64) Block {
	return Block{{W: 'G', Arg: 0}, {W: 'X', Arg: x}, {W: 'Y', Arg: y}}
}
