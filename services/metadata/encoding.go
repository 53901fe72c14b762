// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// tabWidth is the number of spaces a tab expands to. The configurator mixes
// tabs and spaces in exported reports; indentation comparison needs one unit.
const tabWidth = 4

// ReadReportLines loads a report file and returns its text lines with tabs
// expanded to spaces.
//
// Encodings are tried in fixed priority order: UTF-16 little-endian,
// UTF-16 big-endian, UTF-8, Windows-1251. The first that decodes the content
// is used; the Windows-1251 fallback substitutes replacement characters for
// undefined bytes instead of failing the whole read. A missing or
// undecodable file yields an empty slice — callers treat an empty tree as
// "no data", never as an error.
func ReadReportLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	text, ok := DecodeText(data)
	if !ok {
		return nil
	}
	return SplitLines(text)
}

// DecodeText decodes raw report bytes using the encoding priority ladder.
func DecodeText(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", true
	}
	for _, try := range []func([]byte) (string, bool){
		decodeUTF16LE,
		decodeUTF16BE,
		decodeUTF8,
		decodeWindows1251,
	} {
		if s, ok := try(data); ok {
			return s, true
		}
	}
	return "", false
}

// SplitLines splits decoded text into lines, tolerating CRLF endings and
// expanding tabs to tabWidth spaces.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	// Drop a single trailing empty line from a terminating newline.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		if strings.ContainsRune(line, '\t') {
			lines[i] = strings.ReplaceAll(line, "\t", strings.Repeat(" ", tabWidth))
		}
	}
	return lines
}

func decodeUTF16LE(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || len(data)%2 != 0 {
		return "", false
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func decodeUTF16BE(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || len(data)%2 != 0 {
		return "", false
	}
	dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// decodeWindows1251 is the terminal fallback for legacy exports. Undefined
// bytes become replacement characters rather than failing the read.
func decodeWindows1251(data []byte) (string, bool) {
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
