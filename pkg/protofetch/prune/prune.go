// Copyright 2024 The Protofetch Authors.
// SPDX-License-Identifier: Apache-2.0

package prune

import (
	"bufio"
	"io"
	"sort"
	"strings"
)

// ParseImports extracts the targets of import statements from a proto
// file. The parse is tolerant and line-oriented: it looks for the
// import keyword at the start of a logical line (optionally followed by
// the public or weak modifier) and takes the string between the
// quotes, ignoring '//' and '/* */' comments. Files a strict parser
// would reject still yield their imports.
func ParseImports(r io.Reader) []string {
	var imports []string

	scanner := bufio.NewScanner(r)
	inBlockComment := false

	for scanner.Scan() {
		line, nowInBlock := stripComments(scanner.Text(), inBlockComment)
		inBlockComment = nowInBlock

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "import") {
			continue
		}

		rest := strings.TrimPrefix(line, "import")
		if len(rest) > 0 && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '"' {
			// e.g. an identifier like "imports"
			continue
		}

		rest = strings.TrimSpace(rest)
		for _, modifier := range []string{"public", "weak"} {
			if strings.HasPrefix(rest, modifier+" ") || strings.HasPrefix(rest, modifier+"\t") {
				rest = strings.TrimSpace(strings.TrimPrefix(rest, modifier))
			}
		}

		target, ok := quotedString(rest)
		if ok {
			imports = append(imports, target)
		}
	}

	return imports
}

// stripComments removes '//' and '/* */' comments from one line, with
// block-comment state carried across lines. Quoted strings shield
// comment markers inside them.
func stripComments(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	inString := false

	for i := 0; i < len(line); i++ {
		if inBlock {
			if line[i] == '*' && i+1 < len(line) && line[i+1] == '/' {
				inBlock = false
				i++
			}
			continue
		}

		c := line[i]

		if inString {
			b.WriteByte(c)
			if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String(), false
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), inBlock
}

func quotedString(s string) (string, bool) {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return s[start+1 : start+1+end], true
}

// Reachable computes the import closure: starting from roots, resolve
// repeatedly resolves an import path to its own imports until fixpoint.
// resolve's second result is false when the path is not materialized
// anywhere; those paths are handed to onUnresolved (once each) and do
// not extend the closure.
func Reachable(roots []string, resolve func(path string) ([]string, bool), onUnresolved func(path string)) map[string]struct{} {
	reached := map[string]struct{}{}
	unresolved := map[string]struct{}{}

	queue := append([]string{}, roots...)
	sort.Strings(queue)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		if _, seen := reached[path]; seen {
			continue
		}

		imports, found := resolve(path)
		if !found {
			if _, warned := unresolved[path]; !warned {
				unresolved[path] = struct{}{}
				if onUnresolved != nil {
					onUnresolved(path)
				}
			}
			continue
		}

		reached[path] = struct{}{}
		queue = append(queue, imports...)
	}

	return reached
}
