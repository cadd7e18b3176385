package grbl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/grblhub/coord"
)

func TestParseStatus(t *testing.T) {
	stat, err := ParseStatus("<Idle,MPos:0.000,0.000,0.000,WPos:0.000,0.000,0.000>\r\n")
	require.NoError(t, err)
	assert.Equal(t, &Status{State: "Idle"}, stat)

	stat, err = ParseStatus("<Run,MPos:10.500,-2.000,0.000,WPos:5.500,-2.000,1.250>")
	require.NoError(t, err)
	assert.Equal(t, "Run", stat.State)
	assert.Equal(t, coord.Point{X: 10.5, Y: -2}, stat.MPos)
	assert.Equal(t, coord.Point{X: 5.5, Y: -2, Z: 1.25}, stat.WPos)
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, data := range []string{
		"",
		"<Idle>",
		"<Idle,MPos:0.000,0.000,WPos:0.000,0.000,0.000>",
		"<Idle,MPos:0,0,0,WPos:0,0,0,Buf:0>",
		"<Idle,Foo:0,0,0,WPos:0,0,0>",
		"<Idle,MPos:a,0,0,WPos:0,0,0>",
	} {
		stat, err := ParseStatus(data)
		assert.ErrorIs(t, err, ErrParse, data)
		assert.Nil(t, stat, data)
	}
}

func TestParseParameters(t *testing.T) {
	data := "$0=250.000 (x, step/mm)\r\n$1=0.050 (y, step/mm)\r\n$2=-3.000 (z, step/mm)\r\n"
	params, err := ParseParameters(data, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{250, 0.05, -3}, params)

	// values come back in the order printed, not by index
	params, err = ParseParameters("$5=1.5 (a)\r\n$2=2.5 (b)\r\n$9=3.5 (c)\r\n", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, params)

	_, err = ParseParameters(data, 2)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseParameters("$0=abc (x)\r\n", 1)
	assert.ErrorIs(t, err, ErrParse)

	params, err = ParseParameters("", 0)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestParseParameters_Default(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 23; i++ {
		sb.WriteString(SetParameterCommand(i, float64(i)))
		sb.WriteString(" (setting)\r\n")
	}
	params, err := ParseParameters(sb.String(), 23)
	require.NoError(t, err)
	require.Len(t, params, 23)
	assert.Equal(t, 22.0, params[22])
}

func TestParseBanner(t *testing.T) {
	v, err := ParseBanner("\r\nGrbl 0.8c ['$' for help")
	require.NoError(t, err)
	assert.Equal(t, "Grbl 0.8c ", v)
	assert.True(t, Compatible(v, "Grbl 0.8c"))
	assert.True(t, Compatible("Grbl 0.8c", "Grbl 0.8c"))
	assert.False(t, Compatible("Grbl 0.9j ", "Grbl 0.8c"))

	_, err = ParseBanner("garbage")
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = ParseBanner("\r\nGrbl 0.8c [a[b")
	assert.ErrorIs(t, err, ErrMismatch)
}
