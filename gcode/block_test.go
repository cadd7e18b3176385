package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWord_String(t *testing.T) {
	assert.Equal(t, "G01", Word{W: 'G', Arg: 1}.String())
	assert.Equal(t, "G00", Word{W: 'G', Arg: 0}.String())
	assert.Equal(t, "G38.2", Word{W: 'G', Arg: 38.2}.String())
	assert.Equal(t, "M108", Word{W: 'M', Arg: 108}.String())
	assert.Equal(t, "X100", Word{W: 'X', Arg: 100}.String())
	assert.Equal(t, "Y-2.5", Word{W: 'Y', Arg: -2.5}.String())
	assert.Equal(t, "X0.001", Word{W: 'X', Arg: 0.0012}.String())
	assert.Equal(t, "X0", Word{W: 'X', Arg: -0.0001}.String())
}

func TestBlock_String(t *testing.T) {
	assert.Equal(t, "G01X100Y200", LinearMove(100, 200).String())
	assert.Equal(t, "G00X-5Y0", RapidMove(-5, 0).String())
}

func TestBlock_Arg(t *testing.T) {
	b := LinearMove(1, 2)
	ok, v := b.Arg('Y')
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	b.SetArg('Y', 7)
	_, v = b.Arg('Y')
	assert.Equal(t, 7.0, v)

	ok, _ = b.Arg('Z')
	assert.False(t, ok)
}

func TestBlock_Validate(t *testing.T) {
	assert.NoError(t, LinearMove(1, 2).Validate())
	assert.Error(t, Block{}.Validate())
	assert.Error(t, Block{{W: 'X', Arg: 1}, {W: 'X', Arg: 2}}.Validate())
	assert.Error(t, Block{{W: '$', Arg: 1}}.Validate())
}

func TestParseBlock(t *testing.T) {
	b, err := ParseBlock("g01 x100 y-2.5 ; to the corner")
	require.NoError(t, err)
	assert.Equal(t, LinearMove(100, -2.5), b)

	b, err = ParseBlock("M108P1.500Q2")
	require.NoError(t, err)
	assert.Equal(t, Block{{W: 'M', Arg: 108}, {W: 'P', Arg: 1.5}, {W: 'Q', Arg: 2}}, b)

	b, err = ParseBlock("  ")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = ParseBlock("$H")
	assert.Error(t, err)
}
