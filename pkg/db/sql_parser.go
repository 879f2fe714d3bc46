/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"strings"
	"unicode"
)

// statementScanner walks migration text one byte at a time and cuts it on
// semicolons that are not inside quotes, comments or dollar-quoted bodies.
type statementScanner struct {
	src   string
	pos   int
	buf   strings.Builder
	out   []string
	quote byte
	tag   string
}

// splitStatements returns the statements of a migration file without their
// terminating semicolons. Comments are dropped.
func splitStatements(src string) []string {
	s := &statementScanner{src: src}

	for s.pos < len(s.src) {
		s.step()
	}

	s.flush()

	return s.out
}

func (s *statementScanner) step() {
	ch := s.src[s.pos]

	switch {
	case s.tag != "":
		if strings.HasPrefix(s.src[s.pos:], s.tag) {
			s.buf.WriteString(s.tag)
			s.pos += len(s.tag)
			s.tag = ""

			return
		}
	case s.quote != 0:
		if ch == s.quote {
			s.quote = 0
		}
	case strings.HasPrefix(s.src[s.pos:], "--"):
		s.skipUntil("\n")
		return
	case strings.HasPrefix(s.src[s.pos:], "/*"):
		s.skipUntil("*/")
		return
	case ch == '\'' || ch == '"':
		s.quote = ch
	case ch == '$':
		if tag := dollarTag(s.src[s.pos:]); tag != "" {
			s.tag = tag
			s.buf.WriteString(tag)
			s.pos += len(tag)

			return
		}
	case ch == ';':
		s.flush()
		s.pos++

		return
	}

	s.buf.WriteByte(ch)
	s.pos++
}

// skipUntil drops everything up to and including end. A line comment keeps
// its newline so adjacent tokens stay separated.
func (s *statementScanner) skipUntil(end string) {
	idx := strings.Index(s.src[s.pos:], end)
	if idx < 0 {
		s.pos = len(s.src)
		return
	}

	s.pos += idx + len(end)

	if end == "\n" {
		s.buf.WriteByte('\n')
	}
}

func (s *statementScanner) flush() {
	if stmt := strings.TrimSpace(s.buf.String()); stmt != "" {
		s.out = append(s.out, stmt)
	}

	s.buf.Reset()
}

// dollarTag returns the opening tag ($$ or $name$) at the start of src.
func dollarTag(src string) string {
	for i := 1; i < len(src); i++ {
		ch := src[i]
		if ch == '$' {
			return src[:i+1]
		}

		if ch != '_' && !unicode.IsLetter(rune(ch)) && !unicode.IsDigit(rune(ch)) {
			return ""
		}
	}

	return ""
}

// migrationVersion is the numeric prefix of a migration file name.
func migrationVersion(name string) string {
	version, _, _ := strings.Cut(name, "_")

	return version
}
