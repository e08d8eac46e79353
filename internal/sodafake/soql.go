package sodafake

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// CompileError is a $where or $order expression the fake cannot compile.
type CompileError struct {
	Query    string
	Position int
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("Could not parse SoQL query %q at line 1 character %d: %s", e.Query, e.Position, e.Reason)
}

// Predicate reports whether a row matches.
type Predicate func(row Row) bool

type comparison struct {
	field   string
	op      string
	literal string
	numeric bool
}

type token struct {
	kind  tokenKind
	text  string
	start int
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOperator
)

// CompileWhere compiles the subset of SoQL the fake understands:
// comparisons of a column with a quoted string or a number, joined by AND.
// Any bare word on the right-hand side is rejected as malformed.
func CompileWhere(expr string) (Predicate, error) {
	query := "SELECT * WHERE " + expr
	offset := len(query) - len(expr) + 1

	tokens, err := tokenize(expr)
	if err != nil {
		err.Query = query
		err.Position += offset
		return nil, err
	}

	var comparisons []comparison
	i := 0
	for {
		if len(tokens)-i < 3 {
			pos := len(expr)
			if i < len(tokens) {
				pos = tokens[i].start
			}
			return nil, &CompileError{Query: query, Position: pos + offset, Reason: "incomplete comparison"}
		}

		field, op, value := tokens[i], tokens[i+1], tokens[i+2]
		if field.kind != tokIdent {
			return nil, &CompileError{Query: query, Position: field.start + offset, Reason: "expected a column name"}
		}
		if op.kind != tokOperator {
			return nil, &CompileError{Query: query, Position: op.start + offset, Reason: "expected a comparison operator"}
		}
		if value.kind != tokString && value.kind != tokNumber {
			return nil, &CompileError{Query: query, Position: value.start + offset, Reason: "expected a literal"}
		}
		comparisons = append(comparisons, comparison{
			field:   field.text,
			op:      op.text,
			literal: value.text,
			numeric: value.kind == tokNumber,
		})
		i += 3

		if i == len(tokens) {
			break
		}
		if tokens[i].kind != tokIdent || !strings.EqualFold(tokens[i].text, "AND") {
			return nil, &CompileError{Query: query, Position: tokens[i].start + offset, Reason: "expected AND"}
		}
		i++
	}

	return func(row Row) bool {
		for _, c := range comparisons {
			if !c.match(row) {
				return false
			}
		}
		return true
	}, nil
}

func (c comparison) match(row Row) bool {
	actual, ok := row[c.field]
	if !ok {
		return false
	}

	var cmp int
	if c.numeric {
		a, err := strconv.ParseFloat(actual, 64)
		if err != nil {
			return false
		}
		b, _ := strconv.ParseFloat(c.literal, 64)
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(actual, c.literal)
	}

	switch c.op {
	case "=":
		return cmp == 0
	case "!=", "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func tokenize(expr string) ([]token, *CompileError) {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == '\'' {
					// '' escapes a quote inside a string literal
					if i+1 < len(runes) && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, &CompileError{Position: start, Reason: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), start: start})

		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, &CompileError{Position: start, Reason: "invalid number"}
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, start: start})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), start: start})

		case strings.ContainsRune("=<>!", r):
			start := i
			i++
			if i < len(runes) && strings.ContainsRune("=>", runes[i]) {
				i++
			}
			op := string(runes[start:i])
			switch op {
			case "=", "!=", "<>", "<", "<=", ">", ">=":
			default:
				return nil, &CompileError{Position: start, Reason: "unknown operator " + op}
			}
			tokens = append(tokens, token{kind: tokOperator, text: op, start: start})

		default:
			return nil, &CompileError{Position: i, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}

	return tokens, nil
}

// orderSpec is a compiled $order expression.
type orderSpec struct {
	field string
	desc  bool
}

// compileOrder accepts "field", "field ASC" or "field DESC".
func compileOrder(expr string) (orderSpec, error) {
	parts := strings.Fields(expr)
	query := "SELECT * ORDER BY " + expr
	if len(parts) == 0 || len(parts) > 2 {
		return orderSpec{}, &CompileError{Query: query, Position: 19, Reason: "expected a column name"}
	}

	spec := orderSpec{field: parts[0]}
	if len(parts) == 2 {
		switch strings.ToUpper(parts[1]) {
		case "ASC":
		case "DESC":
			spec.desc = true
		default:
			return orderSpec{}, &CompileError{Query: query, Position: 19 + len(parts[0]) + 1, Reason: "expected ASC or DESC"}
		}
	}
	return spec, nil
}
