// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema inspects and rewrites sqlite CREATE statements. Parsing is
// a small tokenizer, not a grammar; it only needs to find identifiers and
// keywords, and it must never fail on malformed input, just stop finding
// things.
package schema

import (
	"strings"
	"unicode"
)

// Table name prefixes that never sync: the sqlite catalog and the remote
// edge runtime's bookkeeping tables.
var excludedPrefixes = []string{"sqlite_", "_cf_"}

// IsInternalTable reports whether a table belongs to the catalog or the
// remote runtime rather than the user schema.
func IsInternalTable(name string) bool {
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

type tokKind uint8

const (
	tokIdent tokKind = iota
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string // identifier text with quoting removed
	end  int    // byte offset just past the token in the source
}

type tokenizer struct {
	src string
	pos int
}

func (tz *tokenizer) skipSpaceAndComments() {
	for tz.pos < len(tz.src) {
		c := tz.src[tz.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			tz.pos++
		case c == '-' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == '-':
			for tz.pos < len(tz.src) && tz.src[tz.pos] != '\n' {
				tz.pos++
			}
		case c == '/' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == '*':
			end := strings.Index(tz.src[tz.pos+2:], "*/")
			if end < 0 {
				tz.pos = len(tz.src)
				return
			}
			tz.pos += 2 + end + 2
		default:
			return
		}
	}
}

// delimited scans a quoted region starting at tz.pos whose opening delimiter
// has length 1, returning the body. A doubled closing delimiter escapes
// itself for quote characters; brackets do not nest.
func (tz *tokenizer) delimited(close byte, doubling bool) string {
	tz.pos++ // opening delimiter
	var sb strings.Builder
	for tz.pos < len(tz.src) {
		c := tz.src[tz.pos]
		if c == close {
			if doubling && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == close {
				sb.WriteByte(close)
				tz.pos += 2
				continue
			}
			tz.pos++
			return sb.String()
		}
		sb.WriteByte(c)
		tz.pos++
	}
	// unterminated, treat what we have as the body
	return sb.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || r >= 0x80
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '$'
}

func (tz *tokenizer) next() (token, bool) {
	tz.skipSpaceAndComments()
	if tz.pos >= len(tz.src) {
		return token{}, false
	}

	c := tz.src[tz.pos]
	switch {
	case c == '"':
		text := tz.delimited('"', true)
		return token{kind: tokIdent, text: text, end: tz.pos}, true
	case c == '`':
		text := tz.delimited('`', true)
		return token{kind: tokIdent, text: text, end: tz.pos}, true
	case c == '[':
		text := tz.delimited(']', false)
		return token{kind: tokIdent, text: text, end: tz.pos}, true
	case c == '\'':
		text := tz.delimited('\'', true)
		return token{kind: tokString, text: text, end: tz.pos}, true
	case isIdentStart(rune(c)):
		start := tz.pos
		for tz.pos < len(tz.src) && isIdentPart(rune(tz.src[tz.pos])) {
			tz.pos++
		}
		return token{kind: tokIdent, text: tz.src[start:tz.pos], end: tz.pos}, true
	case c >= '0' && c <= '9':
		start := tz.pos
		for tz.pos < len(tz.src) {
			c := tz.src[tz.pos]
			if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == 'x' || c == 'X' ||
				(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '+' || c == '-' {
				tz.pos++
				continue
			}
			break
		}
		return token{kind: tokNumber, text: tz.src[start:tz.pos], end: tz.pos}, true
	default:
		tz.pos++
		return token{kind: tokPunct, text: string(c), end: tz.pos}, true
	}
}

// ForeignKeyRefs extracts the referenced table names from a CREATE TABLE
// statement. Both table level constraints (FOREIGN KEY (c) REFERENCES t(id))
// and column level shorthand (c INTEGER REFERENCES t) are recognized.
// Results are deduplicated in order of first appearance. Malformed SQL
// yields whatever references were found before the damage, never an error.
func ForeignKeyRefs(createSQL string) []string {
	tz := &tokenizer{src: createSQL}

	var refs []string
	seen := make(map[string]bool)
	prevWasReferences := false
	for {
		tok, ok := tz.next()
		if !ok {
			break
		}
		if prevWasReferences {
			prevWasReferences = false
			if tok.kind == tokIdent && tok.text != "" && !seen[tok.text] {
				seen[tok.text] = true
				refs = append(refs, tok.text)
			}
			continue
		}
		if tok.kind == tokIdent && strings.EqualFold(tok.text, "REFERENCES") {
			prevWasReferences = true
		}
	}
	return refs
}

// TableName returns the name declared by a CREATE TABLE or CREATE INDEX
// statement, or "" if the statement does not parse far enough.
func TableName(createSQL string) string {
	tz := &tokenizer{src: createSQL}
	tok, ok := tz.next()
	if !ok || !strings.EqualFold(tok.text, "CREATE") {
		return ""
	}
	tok, ok = tz.next()
	if !ok {
		return ""
	}
	if !strings.EqualFold(tok.text, "TABLE") && !strings.EqualFold(tok.text, "INDEX") {
		// TEMP TABLE, UNIQUE INDEX
		tok, ok = tz.next()
		if !ok {
			return ""
		}
	}
	name, ok := tz.next()
	if !ok || name.kind != tokIdent {
		return ""
	}
	if strings.EqualFold(name.text, "IF") {
		// IF NOT EXISTS
		tz.next()
		tz.next()
		name, ok = tz.next()
		if !ok || name.kind != tokIdent {
			return ""
		}
	}
	return name.text
}

// RewriteCreateIfNotExists inserts IF NOT EXISTS into a CREATE TABLE or
// CREATE INDEX statement so replaying it against a destination that already
// has the object is a no-op. The rewrite works on token positions, so every
// name quoting form (bare, double quoted, backticked, bracketed) comes
// through unchanged. Statements that already carry IF NOT EXISTS, or that do
// not look like CREATE statements, are returned untouched.
func RewriteCreateIfNotExists(createSQL string) string {
	tz := &tokenizer{src: createSQL}

	tok, ok := tz.next()
	if !ok || tok.kind != tokIdent || !strings.EqualFold(tok.text, "CREATE") {
		return createSQL
	}

	// CREATE [TEMP|TEMPORARY] TABLE or CREATE [UNIQUE] INDEX
	tok, ok = tz.next()
	for ok && tok.kind == tokIdent &&
		(strings.EqualFold(tok.text, "TEMP") || strings.EqualFold(tok.text, "TEMPORARY") ||
			strings.EqualFold(tok.text, "UNIQUE")) {
		tok, ok = tz.next()
	}
	if !ok || tok.kind != tokIdent ||
		(!strings.EqualFold(tok.text, "TABLE") && !strings.EqualFold(tok.text, "INDEX")) {
		return createSQL
	}
	insertAt := tok.end

	next, ok := tz.next()
	if ok && next.kind == tokIdent && strings.EqualFold(next.text, "IF") {
		return createSQL
	}

	return createSQL[:insertAt] + " IF NOT EXISTS" + createSQL[insertAt:]
}
