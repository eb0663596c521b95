// Package lexer implements the filter grammar tokenizer (component C1):
// a single pass over the user string, walked rune by rune the way the
// teacher's parser.Tokenizer walks a SQL statement, producing a positional
// token.Token stream or a structured *errs.Error.
package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/filter/token"
)

// frame tracks one '(' ... ')' expression group while scanning.
type frame struct {
	// afterOpen is true right after '(' or right after a logical operator,
	// i.e. the scanner expects an EXP|COND next. It is false once an
	// operand has been read and the scanner expects AND/OR or ')'.
	afterOpen    bool
	freshOpen    bool // true only for the '(' that just opened this frame
	operandCount int
}

// Lex tokenizes input according to the grammar in the search filter
// specification. The whole input is implicitly wrapped in one synthetic
// LogicalOpen/LogicalClose pair at positions 0 and len(input)+1.
func Lex(input string) ([]token.Token, error) {
	runes := []rune(input)
	wrapped := make([]rune, 0, len(runes)+2)
	wrapped = append(wrapped, '(')
	wrapped = append(wrapped, runes...)
	wrapped = append(wrapped, ')')

	l := &lexState{src: wrapped}
	return l.run()
}

type lexState struct {
	src []rune
	i   int
	out []token.Token
}

func (l *lexState) run() ([]token.Token, error) {
	if l.src[0] != '(' || l.src[len(l.src)-1] != ')' {
		// cannot happen given how Lex builds the buffer; kept as a guard.
		return nil, errs.UserInput(errs.CodeIncompleteExpression, 0, "empty input")
	}

	var stack []frame

	// consume the synthetic outer '('
	l.emit(token.Token{Kind: token.LogicalOpen, Pos: l.i})
	l.i++
	stack = append(stack, frame{afterOpen: true, freshOpen: true})

	for {
		l.skipSpace()
		if len(stack) == 0 {
			if l.i != len(l.src) {
				return nil, errs.UserInput(errs.CodeInvalidLogicalDepth, l.i, "unexpected trailing input")
			}
			return l.out, nil
		}
		if l.i >= len(l.src) {
			return nil, errs.UserInput(errs.CodeIncompleteExpression, l.i, "unexpected end of expression")
		}

		top := &stack[len(stack)-1]
		c := l.src[l.i]

		if top.afterOpen {
			switch {
			case c == '(':
				l.emit(token.Token{Kind: token.LogicalOpen, Pos: l.i})
				l.i++
				stack = append(stack, frame{afterOpen: true, freshOpen: true})
			case c == ')':
				if top.freshOpen {
					if len(stack) == 1 {
						return nil, errs.UserInput(errs.CodeIncompleteExpression, l.i, "empty expression")
					}
					return nil, errs.UserInput(errs.CodeEmptyCondition, l.i, "nothing to read inside a condition")
				}
				return nil, errs.UserInput(errs.CodeEmptyLogicalOperation, l.i, "logical operator with no right-hand operand")
			case isAttrStart(c):
				if err := l.lexCondition(); err != nil {
					return nil, err
				}
				top.afterOpen = false
				top.freshOpen = false
				top.operandCount++
			default:
				return nil, errs.UserInput(errs.CodeIncorrectAttributeChar, l.i, "wrong char in attribute: %q", c)
			}
			continue
		}

		// afterOperand: expect AND/OR or ')'
		if c == ')' {
			l.emit(token.Token{Kind: token.LogicalClose, Pos: l.i})
			l.i++
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				stack[len(stack)-1].afterOpen = false
				stack[len(stack)-1].freshOpen = false
			}
			continue
		}

		word, wordPos := l.readWord()
		switch {
		case strings.EqualFold(word, "AND"):
			l.emit(token.Token{Kind: token.LogicalAnd, Pos: wordPos})
		case strings.EqualFold(word, "OR"):
			l.emit(token.Token{Kind: token.LogicalOr, Pos: wordPos})
		default:
			return nil, errs.UserInput(errs.CodeWrongLogicalOperator, wordPos, "expected AND or OR, got %q", word)
		}
		top.afterOpen = true
		top.freshOpen = false
	}
}

func (l *lexState) emit(t token.Token) { l.out = append(l.out, t) }

func (l *lexState) skipSpace() {
	for l.i < len(l.src) && unicode.IsSpace(l.src[l.i]) {
		l.i++
	}
}

func isAttrStart(r rune) bool { return isAttrChar(r) }

func isAttrChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// readWord consumes a maximal run of attribute characters starting at the
// current position and returns it along with its start position. It does
// not validate that the word is non-empty.
func (l *lexState) readWord() (string, int) {
	start := l.i
	var b strings.Builder
	for l.i < len(l.src) && isAttrChar(l.src[l.i]) {
		b.WriteRune(l.src[l.i])
		l.i++
	}
	return b.String(), start
}

// lexCondition reads ATTR FOP VALUE starting at the current position,
// emitting three tokens.
func (l *lexState) lexCondition() error {
	attrPos := l.i
	attr, _ := l.readWord()
	l.emit(token.Token{Kind: token.AttributeName, Pos: attrPos, Attribute: attr})

	l.skipSpace()
	if l.i >= len(l.src) {
		return errs.UserInput(errs.CodeIncompleteExpression, l.i, "expected comparison operator")
	}

	opPos := l.i
	op, err := l.readOperator()
	if err != nil {
		return err
	}
	l.emit(token.Token{Kind: token.ComparisonOp, Pos: opPos, Operator: op})

	l.skipSpace()
	if l.i >= len(l.src) {
		return errs.UserInput(errs.CodeIncompleteExpression, l.i, "expected value")
	}

	return l.lexValue()
}

func (l *lexState) readOperator() (token.Op, error) {
	two := ""
	if l.i+1 < len(l.src) {
		two = string(l.src[l.i]) + string(l.src[l.i+1])
	}
	switch two {
	case "==":
		l.i += 2
		return token.EQ, nil
	case "!=":
		l.i += 2
		return token.NEQ, nil
	case ">=", "=>":
		l.i += 2
		return token.GTE, nil
	case "<=", "=<":
		l.i += 2
		return token.LTE, nil
	}

	c := l.src[l.i]
	switch c {
	case '>':
		l.i++
		return token.GT, nil
	case '<':
		l.i++
		return token.LT, nil
	}

	if l.matchesWord("LIKE") {
		l.i += 4
		return token.LIKE, nil
	}

	return "", errs.UserInput(errs.CodeUnknownFilterOperator, l.i, "unknown filter operator near %q", string(c))
}

// matchesWord reports whether word (case-insensitive) starts at the current
// position and is not immediately followed by another attribute character
// (so it is a whole word, not a prefix of a longer attribute).
func (l *lexState) matchesWord(word string) bool {
	n := len(word)
	if l.i+n > len(l.src) {
		return false
	}
	candidate := string(l.src[l.i : l.i+n])
	if !strings.EqualFold(candidate, word) {
		return false
	}
	if l.i+n < len(l.src) && isAttrChar(l.src[l.i+n]) {
		return false
	}
	return true
}

func (l *lexState) lexValue() error {
	valPos := l.i
	c := l.src[l.i]

	switch {
	case c == '"':
		return l.lexString(valPos)
	case c == '-' || unicode.IsDigit(c):
		return l.lexInt(valPos)
	case l.matchesWord("TRUE"):
		l.i += 4
		l.emit(token.Token{Kind: token.BoolLiteral, Pos: valPos, BoolVal: true})
		return nil
	case l.matchesWord("FALSE"):
		l.i += 5
		l.emit(token.Token{Kind: token.BoolLiteral, Pos: valPos, BoolVal: false})
		return nil
	default:
		return errs.UserInput(errs.CodeWrongNumericValue, valPos, "expected a string, integer, or boolean value")
	}
}

func (l *lexState) lexString(openPos int) error {
	l.i++ // opening quote
	contentStart := l.i
	var b strings.Builder
	for {
		if l.i >= len(l.src) {
			return errs.UserInput(errs.CodeUnclosedQuote, openPos, "unterminated quoted string")
		}
		if l.src[l.i] == '"' {
			l.i++
			l.emit(token.Token{Kind: token.StringLiteral, Pos: contentStart, StrVal: b.String()})
			return nil
		}
		b.WriteRune(l.src[l.i])
		l.i++
	}
}

func (l *lexState) lexInt(start int) error {
	i := l.i
	if l.src[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(l.src) && unicode.IsDigit(l.src[i]) {
		i++
	}
	if i == digitsStart {
		return errs.UserInput(errs.CodeWrongNumericValue, start, "malformed integer literal")
	}

	text := string(l.src[l.i:i])
	l.i = i

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return errs.UserInput(errs.CodeWrongNumericValue, start, "integer literal out of range: %q", text)
	}
	l.emit(token.Token{Kind: token.IntLiteral, Pos: start, IntVal: v})
	return nil
}
