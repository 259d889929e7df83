package compiler

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// SkipEnv is the closed capability surface skip expressions evaluate
// against: an environment-variable accessor and the operating-system
// identity. Nothing else is reachable from an expression.
type SkipEnv struct {
	// Platform mirrors the checker runtime's platform name
	// ("linux", "darwin", "win32").
	Platform string
	// OSName is the coarse OS family ("posix" or "nt").
	OSName string
	// Getenv looks up an environment variable.
	Getenv func(string) (string, bool)
}

// DefaultSkipEnv returns the ambient process environment surface.
func DefaultSkipEnv() SkipEnv {
	platform := runtime.GOOS
	osName := "posix"
	if runtime.GOOS == "windows" {
		platform = "win32"
		osName = "nt"
	}
	return SkipEnv{
		Platform: platform,
		OSName:   osName,
		Getenv:   os.LookupEnv,
	}
}

// EvalSkip resolves a case's skip predicate. A boolean literal is used
// directly; the strings "True" and "False" map to their boolean values; any
// other string is evaluated as a restricted boolean expression over env.
func EvalSkip(v any, env SkipEnv) (bool, error) {
	switch skip := v.(type) {
	case nil:
		return false, nil
	case bool:
		return skip, nil
	case string:
		switch skip {
		case "True":
			return true, nil
		case "False":
			return false, nil
		default:
			return evalSkipExpr(skip, env)
		}
	default:
		return false, fmt.Errorf("skip must be a boolean or a string, got %T", v)
	}
}

// The expression grammar is deliberately small: string literals, a fixed set
// of lookups, equality/membership comparison, and and/or/not. It is not a
// general evaluator.
//
//	expr    = and { "or" and }
//	and     = unary { "and" unary }
//	unary   = "not" unary | "(" expr ")" | cmp
//	cmp     = operand [ ("==" | "!=" | "in" | "not" "in") operand ]
//	operand = string | lookup
//	lookup  = "sys.platform" | "os.name"
//	        | "os.environ" "[" string "]"
//	        | "os.environ.get" "(" string [ "," string ] ")"
type skipParser struct {
	tokens []string
	pos    int
	env    SkipEnv
}

func evalSkipExpr(expr string, env SkipEnv) (bool, error) {
	tokens, err := tokenizeSkipExpr(expr)
	if err != nil {
		return false, fmt.Errorf("skip expression %q: %w", expr, err)
	}
	p := &skipParser{tokens: tokens, env: env}
	result, err := p.parseOr()
	if err != nil {
		return false, fmt.Errorf("skip expression %q: %w", expr, err)
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("skip expression %q: unexpected trailing %q", expr, p.tokens[p.pos])
	}
	return result, nil
}

func tokenizeSkipExpr(expr string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(expr[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string literal")
			}
			// Keep the quote as a marker distinguishing literals from
			// identifiers.
			tokens = append(tokens, expr[i:i+end+2])
			i += end + 2
		case c == '(' || c == ')' || c == '[' || c == ']' || c == ',':
			tokens = append(tokens, string(c))
			i++
		case c == '=' || c == '!':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return nil, fmt.Errorf("unexpected character %q", c)
			}
			tokens = append(tokens, expr[i:i+2])
			i += 2
		case isIdentByte(c):
			j := i
			for j < len(expr) && (isIdentByte(expr[j]) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return tokens, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *skipParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *skipParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *skipParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *skipParser) parseOr() (bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek() == "or" {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		result = result || rhs
	}
	return result, nil
}

func (p *skipParser) parseAnd() (bool, error) {
	result, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for p.peek() == "and" {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		result = result && rhs
	}
	return result, nil
}

func (p *skipParser) parseUnary() (bool, error) {
	if p.peek() == "not" {
		p.next()
		result, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		return !result, nil
	}
	if p.peek() == "(" {
		p.next()
		result, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		return result, nil
	}
	return p.parseCmp()
}

func (p *skipParser) parseCmp() (bool, error) {
	left, err := p.parseOperand()
	if err != nil {
		return false, err
	}

	op := p.peek()
	if op == "not" && p.pos+1 < len(p.tokens) && p.tokens[p.pos+1] == "in" {
		p.pos += 2
		op = "not in"
	} else if op == "==" || op == "!=" || op == "in" {
		p.next()
	} else {
		// Bare operand: truthiness is non-emptiness.
		return left != "", nil
	}

	right, err := p.parseOperand()
	if err != nil {
		return false, err
	}

	switch op {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	case "in":
		return strings.Contains(right, left), nil
	case "not in":
		return !strings.Contains(right, left), nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// parseOperand yields a string value: either a literal or a lookup against
// the closed capability surface.
func (p *skipParser) parseOperand() (string, error) {
	tok := p.next()
	switch {
	case tok == "":
		return "", fmt.Errorf("unexpected end of expression")
	case tok[0] == '\'' || tok[0] == '"':
		return tok[1 : len(tok)-1], nil
	case tok == "sys.platform":
		return p.env.Platform, nil
	case tok == "os.name":
		return p.env.OSName, nil
	case tok == "os.environ":
		if err := p.expect("["); err != nil {
			return "", err
		}
		name, err := p.parseStringToken()
		if err != nil {
			return "", err
		}
		if err := p.expect("]"); err != nil {
			return "", err
		}
		value, ok := p.env.Getenv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", name)
		}
		return value, nil
	case tok == "os.environ.get":
		if err := p.expect("("); err != nil {
			return "", err
		}
		name, err := p.parseStringToken()
		if err != nil {
			return "", err
		}
		fallback := ""
		if p.peek() == "," {
			p.next()
			fallback, err = p.parseStringToken()
			if err != nil {
				return "", err
			}
		}
		if err := p.expect(")"); err != nil {
			return "", err
		}
		if value, ok := p.env.Getenv(name); ok {
			return value, nil
		}
		return fallback, nil
	default:
		return "", fmt.Errorf("unknown symbol %q", tok)
	}
}

func (p *skipParser) parseStringToken() (string, error) {
	tok := p.next()
	if tok == "" || (tok[0] != '\'' && tok[0] != '"') {
		return "", fmt.Errorf("expected string literal, got %q", tok)
	}
	return tok[1 : len(tok)-1], nil
}
