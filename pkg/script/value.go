package script

import (
	"regexp"
	"strconv"
	"strings"
)

// exprOf converts one token into an expression. Words that parse as numbers
// become number literals, words holding placeholders become templates and any
// other word is a string literal.
func exprOf(t Token) Expr {
	switch t.Kind {
	case TokenVar:
		return VarRef{Name: t.Text}
	case TokenString:
		return StringLit{Value: t.Text}
	}
	if strings.Contains(t.Text, "{{") {
		return Template{Text: t.Text}
	}
	if n, err := strconv.ParseFloat(t.Text, 64); err == nil {
		return NumberLit{Value: n}
	}
	return StringLit{Value: t.Text}
}

// Eval resolves an expression against the variable map. A nil expression or a
// missing variable evaluates to 0. Values are float64 or string.
func Eval(e Expr, vars map[string]any) any {
	switch v := e.(type) {
	case NumberLit:
		return v.Value
	case StringLit:
		return v.Value
	case VarRef:
		if val, ok := vars[v.Name]; ok {
			return val
		}
		return float64(0)
	case Template:
		return Interpolate(v.Text, vars)
	default:
		return float64(0)
	}
}

// EvalNumber evaluates e and converts the result to a number. Strings that do
// not parse as numbers are 0.
func EvalNumber(e Expr, vars map[string]any) float64 {
	return ToNumber(Eval(e, vars))
}

// EvalString evaluates e and formats the result as text.
func EvalString(e Expr, vars map[string]any) string {
	if e == nil {
		return ""
	}
	return ToString(Eval(e, vars))
}

// ToNumber converts a variable value to a number.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ToString formats a variable value; whole numbers print without a fraction.
func ToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return strconv.FormatFloat(ToNumber(s), 'f', -1, 64)
	}
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Interpolate replaces {{name}} placeholders in text with variable values.
func Interpolate(text string, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return ToString(Eval(VarRef{Name: name}, vars))
	})
}
