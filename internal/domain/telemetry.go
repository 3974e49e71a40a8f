package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type LogLine struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// DecodeChunk turns one transport read into display text. A chunk may hold a
// partial line or several lines; only the trailing line terminator is removed.
func DecodeChunk(chunk []byte) string {
	text := string(chunk)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return strings.TrimRight(text, "\r\n")
}
