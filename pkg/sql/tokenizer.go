package sql

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPunct
	tokenString
)

type token struct {
	kind tokenKind
	// text holds the upper-cased word for tokenWord, the raw punctuation
	// character for tokenPunct, and the literal contents (without quotes)
	// for tokenString.
	text string
}

// tokenize splits a statement into word, punctuation and string-literal
// tokens. Comments are discarded. Double-quoted and bracket-quoted
// identifiers become word tokens so deny-list checks still see them.
func tokenize(sqlText string) ([]token, error) {
	var tokens []token
	runes := []rune(sqlText)
	i := 0
	n := len(runes)

	for i < n {
		ch := runes[i]

		switch {
		// Line comment
		case ch == '-' && i+1 < n && runes[i+1] == '-':
			for i < n && runes[i] != '\n' {
				i++
			}

		// Block comment
		case ch == '/' && i+1 < n && runes[i+1] == '*':
			i += 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			if i+1 >= n {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i += 2

		// Single-quoted string literal, '' escapes a quote
		case ch == '\'':
			var sb strings.Builder
			i++
			closed := false
			for i < n {
				if runes[i] == '\'' {
					if i+1 < n && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String()})

		// Double-quoted identifier
		case ch == '"':
			var sb strings.Builder
			i++
			closed := false
			for i < n {
				if runes[i] == '"' {
					if i+1 < n && runes[i+1] == '"' {
						sb.WriteRune('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToUpper(sb.String())})

		// Bracket-quoted identifier
		case ch == '[':
			var sb strings.Builder
			i++
			closed := false
			for i < n {
				if runes[i] == ']' {
					i++
					closed = true
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated bracket identifier")
			}
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToUpper(sb.String())})

		// Word: identifier or keyword. Underscores keep e.g. update_time a
		// single token.
		case isWordRune(ch):
			start := i
			for i < n && isWordRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToUpper(string(runes[start:i]))})

		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++

		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(ch)})
			i++
		}
	}

	return tokens, nil
}

func isWordRune(ch rune) bool {
	return ch == '_' || ch == '$' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
