package tool_calculator

import (
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
)

// Tool name constant
const Name = "calculator"

const calculatorPrompt = `Evaluates an arithmetic expression exactly as written.

WHEN TO USE THIS TOOL:
- Use for any arithmetic beyond trivial mental math
- Prefer it over estimating results of multiplication, division or powers

SYNTAX:
- Operators: + - * / % and ^ (power, right associative)
- Parentheses for grouping
- Constants: pi, e
- Functions: sqrt, abs, floor, ceil, round, ln, log (base 10), sin, cos, tan, pow(x, y), min(a, b, ...), max(a, b, ...)`

const maxExpressionLen = 1024

var ErrSyntax = errors.New("syntax error")

// CalculatorInput represents the parameters for calculator
type CalculatorInput struct {
	Expression string `json:"expression" required:"true" minLength:"1" description:"The arithmetic expression to evaluate, e.g. (2 + 3) * 4 ^ 2"`
}

// CalculatorOutput represents the response from calculator
type CalculatorOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formatted  string  `json:"formatted"`
}

// Tool returns the calculator tool definition using GenericTool
func Tool(opts ...agent.ToolOption) (agent.Tool, error) {
	return agent.NewGenericTool(Name, calculatorPrompt, calculatorHandler, opts...)
}

func calculatorHandler(ctx context.Context, input CalculatorInput) (CalculatorOutput, error) {
	if err := toolsutil.CheckContext(ctx); err != nil {
		return CalculatorOutput{}, err
	}
	expr := strings.TrimSpace(input.Expression)
	if expr == "" {
		return CalculatorOutput{}, fmt.Errorf("%w: expression is required", toolsutil.ErrInvalidParams)
	}
	if len(expr) > maxExpressionLen {
		return CalculatorOutput{}, fmt.Errorf("%w: expression is longer than %d bytes", toolsutil.ErrInvalidParams, maxExpressionLen)
	}
	v, err := Evaluate(expr)
	if err != nil {
		return CalculatorOutput{}, err
	}
	return CalculatorOutput{
		Expression: expr,
		Result:     v,
		Formatted:  strconv.FormatFloat(v, 'g', -1, 64),
	}, nil
}

// Evaluate computes the value of an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	p := newParser(expr)
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok != token.EOF {
		return 0, p.errorf("unexpected %s", p.describe())
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return v, nil
}

// parser is a precedence climbing parser over Go's scanner. Go's own
// expression grammar gives ^ the precedence of +, so it cannot be reused.
type parser struct {
	s   scanner.Scanner
	pos token.Pos
	tok token.Token
	lit string
	err error
}

func newParser(expr string) *parser {
	p := &parser{}
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(expr))
	p.s.Init(file, []byte(expr), func(_ token.Position, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s", ErrSyntax, msg)
		}
	}, scanner.ScanComments)
	p.next()
	return p
}

func (p *parser) next() {
	for {
		p.pos, p.tok, p.lit = p.s.Scan()
		// The scanner inserts a semicolon at the end of input.
		if p.tok == token.SEMICOLON && p.lit == "\n" {
			continue
		}
		return
	}
}

func (p *parser) errorf(format string, args ...any) error {
	if p.err != nil {
		return p.err
	}
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, int(p.pos)-1, fmt.Sprintf(format, args...))
}

func (p *parser) describe() string {
	if p.tok == token.EOF {
		return "end of expression"
	}
	if p.lit != "" {
		return strconv.Quote(p.lit)
	}
	return strconv.Quote(p.tok.String())
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.tok == token.ADD || p.tok == token.SUB {
		op := p.tok
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == token.ADD {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

// term := unary (('*' | '/' | '%') unary)*
func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.tok == token.MUL || p.tok == token.QUO || p.tok == token.REM {
		op := p.tok
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case token.MUL:
			left *= right
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case token.REM:
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

// unary := ('-' | '+') unary | power
func (p *parser) unary() (float64, error) {
	switch p.tok {
	case token.SUB:
		p.next()
		v, err := p.unary()
		return -v, err
	case token.ADD:
		p.next()
		return p.unary()
	}
	return p.power()
}

// power := primary ('^' unary)?
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.tok != token.XOR {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	switch p.tok {
	case token.INT, token.FLOAT:
		v, err := strconv.ParseFloat(strings.ReplaceAll(p.lit, "_", ""), 64)
		if err != nil {
			return 0, p.errorf("bad number %q", p.lit)
		}
		p.next()
		return v, nil
	case token.LPAREN:
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok != token.RPAREN {
			return 0, p.errorf("expected ) but found %s", p.describe())
		}
		p.next()
		return v, nil
	case token.IDENT:
		name := strings.ToLower(p.lit)
		p.next()
		if p.tok != token.LPAREN {
			c, ok := constants[name]
			if !ok {
				return 0, fmt.Errorf("unknown constant %q", name)
			}
			return c, nil
		}
		p.next()
		args, err := p.args()
		if err != nil {
			return 0, err
		}
		return call(name, args)
	}
	return 0, p.errorf("unexpected %s", p.describe())
}

func (p *parser) args() ([]float64, error) {
	var args []float64
	if p.tok == token.RPAREN {
		p.next()
		return args, nil
	}
	for {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		switch p.tok {
		case token.COMMA:
			p.next()
		case token.RPAREN:
			p.next()
			return args, nil
		default:
			return nil, p.errorf("expected , or ) but found %s", p.describe())
		}
	}
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var unaryFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"ln":    math.Log,
	"log":   math.Log10,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
}

func call(name string, args []float64) (float64, error) {
	if fn, ok := unaryFuncs[name]; ok {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s takes 1 argument, got %d", name, len(args))
		}
		return fn(args[0]), nil
	}
	switch name {
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "min", "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("%s needs at least 1 argument", name)
		}
		v := args[0]
		for _, a := range args[1:] {
			if name == "min" {
				v = math.Min(v, a)
			} else {
				v = math.Max(v, a)
			}
		}
		return v, nil
	}
	return 0, fmt.Errorf("unknown function %q", name)
}
