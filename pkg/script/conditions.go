package script

import (
	"fmt"
	"strings"
)

// CmpOp is one of the six comparison operators.
type CmpOp string

const (
	OpGE CmpOp = ">="
	OpLE CmpOp = "<="
	OpGT CmpOp = ">"
	OpLT CmpOp = "<"
	OpEQ CmpOp = "=="
	OpNE CmpOp = "!="
)

// Compare applies the operator to a and b.
func (op CmpOp) Compare(a, b float64) bool {
	switch op {
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}

// Condition is a closed set of predicates over the live character.
type Condition interface {
	cond()
}

// Comparison is the shared "<op> <value>" tail of numeric predicates.
type Comparison struct {
	Op    CmpOp
	Value Expr
}

type InventoryFull struct{}

type InventorySpace struct{ Comparison }

// HasItem holds when at least Quantity of Code is carried (Quantity defaults to 1).
type HasItem struct {
	Code     Expr
	Quantity Expr
}

// SkillLevel compares a skill level. Skill "level" means the overall level.
type SkillLevel struct {
	Skill string
	Comparison
}

type HP struct{ Comparison }
type HPPercent struct{ Comparison }
type Gold struct{ Comparison }

type AtLocation struct {
	X, Y Expr
}

type HasTask struct{}
type TaskProgressComplete struct{}
type TaskCoins struct{ Comparison }

func (InventoryFull) cond()        {}
func (InventorySpace) cond()       {}
func (HasItem) cond()              {}
func (SkillLevel) cond()           {}
func (HP) cond()                   {}
func (HPPercent) cond()            {}
func (Gold) cond()                 {}
func (AtLocation) cond()           {}
func (HasTask) cond()              {}
func (TaskProgressComplete) cond() {}
func (TaskCoins) cond()            {}

// OverallLevel is the SkillLevel.Skill value for the character's combat level.
const OverallLevel = "level"

// Skills lists the skill names accepted by <skill>_level and skill_level.
var Skills = []string{
	"mining", "woodcutting", "fishing", "weaponcrafting", "gearcrafting",
	"jewelrycrafting", "cooking", "alchemy",
}

func isSkill(name string) bool {
	if name == OverallLevel || name == "combat" || name == "character" {
		return true
	}
	for _, s := range Skills {
		if s == name {
			return true
		}
	}
	return false
}

func normalizeSkill(name string) string {
	if name == "combat" || name == "character" {
		return OverallLevel
	}
	return name
}

// ParseError is a hard parse failure, reported before execution starts.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// parseCondition builds a Condition from the tokens between a keyword (if,
// until, while) and the trailing colon.
func parseCondition(line int, toks []Token) (Condition, error) {
	if len(toks) == 0 {
		return nil, &ParseError{Line: line, Msg: "missing condition"}
	}
	head := strings.ToLower(toks[0].Text)
	rest := toks[1:]

	switch head {
	case "inventory_full":
		return InventoryFull{}, nil
	case "has_task":
		return HasTask{}, nil
	case "task_progress_complete":
		return TaskProgressComplete{}, nil
	case "inventory_space":
		c, err := parseComparison(line, head, rest)
		return InventorySpace{c}, err
	case "hp":
		c, err := parseComparison(line, head, rest)
		return HP{c}, err
	case "hp_percent":
		c, err := parseComparison(line, head, rest)
		return HPPercent{c}, err
	case "gold":
		c, err := parseComparison(line, head, rest)
		return Gold{c}, err
	case "task_coins":
		c, err := parseComparison(line, head, rest)
		return TaskCoins{c}, err
	case "has_item":
		if len(rest) == 0 {
			return nil, &ParseError{Line: line, Msg: "has_item needs an item code"}
		}
		hi := HasItem{Code: exprOf(rest[0]), Quantity: NumberLit{Value: 1}}
		if len(rest) > 1 {
			hi.Quantity = exprOf(rest[1])
		}
		return hi, nil
	case "at_location":
		if len(rest) < 2 {
			return nil, &ParseError{Line: line, Msg: "at_location needs x and y"}
		}
		return AtLocation{X: exprOf(rest[0]), Y: exprOf(rest[1])}, nil
	case "skill_level":
		if len(rest) == 0 || !isSkill(strings.ToLower(rest[0].Text)) {
			return nil, &ParseError{Line: line, Msg: "skill_level needs a known skill name"}
		}
		skill := normalizeSkill(strings.ToLower(rest[0].Text))
		c, err := parseComparison(line, head, rest[1:])
		return SkillLevel{Skill: skill, Comparison: c}, err
	case OverallLevel:
		c, err := parseComparison(line, head, rest)
		return SkillLevel{Skill: OverallLevel, Comparison: c}, err
	}

	if skill, ok := strings.CutSuffix(head, "_level"); ok && isSkill(skill) {
		c, err := parseComparison(line, head, rest)
		return SkillLevel{Skill: normalizeSkill(skill), Comparison: c}, err
	}

	return nil, &ParseError{Line: line, Msg: fmt.Sprintf("unknown condition %q", toks[0].Text)}
}

func parseComparison(line int, head string, toks []Token) (Comparison, error) {
	if len(toks) < 2 {
		return Comparison{}, &ParseError{Line: line, Msg: fmt.Sprintf("%s needs <op> <value>", head)}
	}
	if toks[0].Kind != TokenOp {
		return Comparison{}, &ParseError{Line: line, Msg: fmt.Sprintf("unknown operator %q", toks[0].Text)}
	}
	return Comparison{Op: CmpOp(toks[0].Text), Value: exprOf(toks[1])}, nil
}
