package script

import "strings"

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenWord   TokenKind = iota // identifiers, numbers, item codes
	TokenString                  // "quoted text", Text holds the unquoted value
	TokenVar                     // {{name}}, Text holds the variable name
	TokenOp                      // >= <= > < == !=
	TokenAssign                  // =
	TokenColon                   // :
)

// Token is a single lexeme from one source line.
type Token struct {
	Kind TokenKind
	Text string
}

// Line is one non-empty source line: its indentation depth and tokens.
type Line struct {
	Number int // 1-based line number in the source
	Indent int
	Tokens []Token
}

const tabWidth = 4

// twoCharOps must be checked before the single-character operators.
var twoCharOps = []string{">=", "<=", "==", "!="}

// Tokenize splits a single source line into tokens. Trailing # comments are
// removed. Characters that cannot start a token are skipped, so malformed input
// yields fewer tokens instead of an error.
func Tokenize(src string) []Token {
	var tokens []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c == '#':
			return tokens

		case c == '"':
			end := strings.IndexByte(src[i+1:], '"')
			if end < 0 {
				// Unterminated string runs to the end of the line.
				tokens = append(tokens, Token{Kind: TokenString, Text: src[i+1:]})
				return tokens
			}
			tokens = append(tokens, Token{Kind: TokenString, Text: src[i+1 : i+1+end]})
			i += end + 2

		case isWordChar(c) || strings.HasPrefix(src[i:], "{{"):
			tok, n := lexWord(src[i:])
			if n == 0 {
				// Unterminated {{ is skipped.
				i += 2
				continue
			}
			if tok.Text != "" {
				tokens = append(tokens, tok)
			}
			i += n

		case isOpStart(c):
			if op := matchTwoCharOp(src[i:]); op != "" {
				tokens = append(tokens, Token{Kind: TokenOp, Text: op})
				i += 2
				continue
			}
			switch c {
			case '>', '<':
				tokens = append(tokens, Token{Kind: TokenOp, Text: string(c)})
			case '=':
				tokens = append(tokens, Token{Kind: TokenAssign, Text: "="})
			case ':':
				tokens = append(tokens, Token{Kind: TokenColon, Text: ":"})
			}
			// a lone '!' is dropped
			i++

		default:
			i++
		}
	}
	return tokens
}

// lexWord reads a run of word characters and complete {{name}} spans. A run
// that is exactly one span is a TokenVar; a span glued to other characters,
// as in {{metal}}_bar, stays inside a TokenWord and is interpolated when
// evaluated. It returns the number of bytes consumed.
func lexWord(s string) (Token, int) {
	j, spans, plain := 0, 0, false
	for j < len(s) {
		if strings.HasPrefix(s[j:], "{{") {
			end := strings.Index(s[j+2:], "}}")
			if end < 0 {
				break
			}
			j += end + 4
			spans++
			continue
		}
		if !isWordChar(s[j]) {
			break
		}
		j++
		plain = true
	}
	if spans == 1 && !plain {
		return Token{Kind: TokenVar, Text: strings.TrimSpace(s[2 : j-2])}, j
	}
	return Token{Kind: TokenWord, Text: s[:j]}, j
}

func isOpStart(c byte) bool {
	return c == '>' || c == '<' || c == '=' || c == '!' || c == ':'
}

func matchTwoCharOp(s string) string {
	for _, op := range twoCharOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.'
}

// SplitLines tokenizes a whole script. Blank and comment-only lines are dropped.
func SplitLines(src string) []Line {
	var lines []Line
	for n, raw := range strings.Split(src, "\n") {
		tokens := Tokenize(raw)
		if len(tokens) == 0 {
			continue
		}
		lines = append(lines, Line{
			Number: n + 1,
			Indent: indentOf(raw),
			Tokens: tokens,
		})
	}
	return lines
}

func indentOf(raw string) int {
	depth := 0
	for _, c := range raw {
		switch c {
		case ' ':
			depth++
		case '\t':
			depth += tabWidth
		default:
			return depth
		}
	}
	return depth
}
