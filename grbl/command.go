package grbl

import (
	"fmt"
	"strings"
	"time"
)

// Class groups commands by how their reply is framed.
type Class int

const (
	ClassOther Class = iota
	ClassQuery
	ClassParameterized
	ClassMotion
)

func (c Class) String() string {
	switch c {
	case ClassQuery:
		return "query"
	case ClassParameterized:
		return "parameterized"
	case ClassMotion:
		return "motion"
	}
	return "other"
}

// Long reports whether the class uses the long answer timeout and the
// "ok\r\n" terminator. It matches commands starting with '$' or '?'.
func (c Class) Long() bool {
	return c == ClassQuery || c == ClassParameterized
}

// Classify returns the class of a raw command line.
func Classify(cmd string) Class {
	if cmd == "" {
		return ClassOther
	}
	switch cmd[0] {
	case '?':
		return ClassQuery
	case '$':
		if strings.ContainsRune(cmd, '=') {
			return ClassParameterized
		}
		return ClassQuery
	}
	if isMotion(cmd) {
		return ClassMotion
	}
	return ClassOther
}

// isMotion matches G0, G00, G1 and G01 followed by a non-digit.
func isMotion(cmd string) bool {
	if len(cmd) < 2 || (cmd[0] != 'G' && cmd[0] != 'g') {
		return false
	}
	code := cmd[1:]
	if strings.HasPrefix(code, "0") && len(code) > 1 && (code[1] == '0' || code[1] == '1') {
		code = code[1:]
	}
	if code[0] != '0' && code[0] != '1' {
		return false
	}
	return len(code) == 1 || code[1] < '0' || code[1] > '9'
}

// Wire framing.
const (
	lineEnd   = "\n"
	resetByte = 0x18

	longReplySize  = 1024
	shortReplySize = 128
	resetReplySize = 64
)

var (
	termOK     = []byte("ok\r\n")
	termLine   = []byte("\r\n")
	termBanner = []byte("]\r\n")
)

// frame describes how one command is sent and its reply read.
type frame struct {
	timeout time.Duration
	term    []byte
	maxLen  int
	ack     bool // reply must contain "ok"
}

func (s *Session) frameFor(cmd string) frame {
	if Classify(cmd).Long() {
		return frame{timeout: s.cfg.longTimeout, term: termOK, maxLen: longReplySize}
	}
	return frame{timeout: s.cfg.shortTimeout, term: termLine, maxLen: shortReplySize, ack: true}
}

// SetParameterCommand formats a "$n=v" settings write.
func SetParameterCommand(index int, value float64) string {
	return fmt.Sprintf("$%d=%.3f", index, value)
}

// SyncCommand formats the board's M108 axis synchronization command.
func SyncCommand(axis int, value float64) string {
	return fmt.Sprintf("M108P%.3fQ%d", value, axis)
}

// HomeCommand runs the homing cycle.
const HomeCommand = "$H"
