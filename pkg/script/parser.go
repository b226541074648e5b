package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Commands lists every statement head the parser recognizes.
var Commands = []string{
	"goto", "gather", "woodcut", "mine", "fish", "fight", "bank", "equip",
	"unequip", "recycle", "craft", "market", "ge", "npc", "task", "use",
	"transition", "rest", "sleep", "wait_cooldown", "log", "set", "if", "else",
	"loop",
}

type parser struct {
	lines    []Line
	pos      int
	warnings []string
}

// Parse turns script source into a Program. Only unknown conditions and
// comparison operators are errors; anything else that cannot be understood is
// kept as a warning and, for statements, as an UnknownStmt.
func Parse(src string) (*Program, error) {
	p := &parser{lines: SplitLines(src)}
	if len(p.lines) == 0 {
		return &Program{}, nil
	}

	base := p.lines[0].Indent
	for _, ln := range p.lines {
		base = min(base, ln.Indent)
	}

	stmts, err := p.parseBlock(base)
	if err != nil {
		return nil, err
	}
	return &Program{Statements: stmts, Warnings: p.warnings}, nil
}

func (p *parser) warnf(line int, format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf("line %d: ", line)+fmt.Sprintf(format, args...))
}

// parseBlock reads statements at exactly base indentation. It returns at the
// first line indented less than base. Lines indented deeper than base that no
// if/loop claimed are skipped with a warning.
func (p *parser) parseBlock(base int) ([]Statement, error) {
	var stmts []Statement
	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if ln.Indent < base {
			break
		}
		if ln.Indent > base {
			p.warnf(ln.Number, "unexpected indentation, line ignored")
			p.pos++
			continue
		}

		var (
			stmt Statement
			err  error
		)
		switch strings.ToLower(ln.Tokens[0].Text) {
		case "if":
			stmt, err = p.parseIf(ln)
		case "loop":
			stmt, err = p.parseLoop(ln)
		case "else":
			p.warnf(ln.Number, "else without a matching if")
			stmt = UnknownStmt{Node: Node{Line: ln.Number}, Head: "else"}
			p.pos++
		default:
			stmt = p.parseSimple(ln)
			p.pos++
		}
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// parseBody consumes the header line at p.pos and the nested block after it.
// The block's depth is taken from its first line.
func (p *parser) parseBody(header Line) ([]Statement, error) {
	p.pos++
	if p.pos >= len(p.lines) || p.lines[p.pos].Indent <= header.Indent {
		p.warnf(header.Number, "empty block")
		return nil, nil
	}
	return p.parseBlock(p.lines[p.pos].Indent)
}

func (p *parser) parseIf(ln Line) (Statement, error) {
	cond, err := parseCondition(ln.Number, trimColon(ln.Tokens[1:]))
	if err != nil {
		return nil, err
	}
	stmt := IfStmt{Node: Node{Line: ln.Number}, Cond: cond}
	if stmt.Body, err = p.parseBody(ln); err != nil {
		return nil, err
	}

	if p.pos < len(p.lines) {
		next := p.lines[p.pos]
		if next.Indent == ln.Indent && strings.EqualFold(next.Tokens[0].Text, "else") {
			body, err := p.parseBody(next)
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = []Statement{}
			}
			stmt.Else = body
		}
	}
	return stmt, nil
}

func (p *parser) parseLoop(ln Line) (Statement, error) {
	args := trimColon(ln.Tokens[1:])
	stmt := LoopStmt{Node: Node{Line: ln.Number}}

	switch {
	case len(args) == 0:
		p.warnf(ln.Number, "loop without a count runs until the iteration limit")
		stmt.Kind = LoopForever
	case strings.EqualFold(args[0].Text, "forever") && args[0].Kind == TokenWord:
		stmt.Kind = LoopForever
	case strings.EqualFold(args[0].Text, "until") && args[0].Kind == TokenWord:
		cond, err := parseCondition(ln.Number, args[1:])
		if err != nil {
			return nil, err
		}
		stmt.Kind, stmt.Cond = LoopUntil, cond
	case strings.EqualFold(args[0].Text, "while") && args[0].Kind == TokenWord:
		cond, err := parseCondition(ln.Number, args[1:])
		if err != nil {
			return nil, err
		}
		stmt.Kind, stmt.Cond = LoopWhile, cond
	default:
		stmt.Kind, stmt.Count = LoopCount, exprOf(args[0])
	}

	var err error
	stmt.Body, err = p.parseBody(ln)
	return stmt, err
}

// parseSimple parses a single-line command.
func (p *parser) parseSimple(ln Line) Statement {
	head := strings.ToLower(ln.Tokens[0].Text)
	args := ln.Tokens[1:]
	node := Node{Line: ln.Number}
	if ln.Tokens[0].Kind != TokenWord {
		return p.unknown(ln, head)
	}

	switch head {
	case "goto":
		switch {
		case len(args) >= 2:
			return GotoStmt{Node: node, X: exprOf(args[0]), Y: exprOf(args[1])}
		case len(args) == 1:
			return GotoStmt{Node: node, Name: exprOf(args[0])}
		}
		return p.malformed(ln, "goto needs <x> <y> or a location name")

	case "gather", "woodcut", "mine", "fish":
		return GatherStmt{Node: node, Alias: head}

	case "fight":
		return FightStmt{Node: node, Monster: optArg(args, 0)}

	case "bank":
		return p.parseBank(ln, args)

	case "equip":
		if len(args) == 0 {
			return p.malformed(ln, "equip needs an item code")
		}
		return EquipStmt{Node: node, Item: exprOf(args[0]), Slot: optArg(args, 1)}

	case "unequip":
		if len(args) == 0 {
			return p.malformed(ln, "unequip needs a slot")
		}
		return UnequipStmt{Node: node, Slot: exprOf(args[0])}

	case "recycle":
		if len(args) == 0 {
			return p.malformed(ln, "recycle needs an item code")
		}
		return RecycleStmt{Node: node, Item: exprOf(args[0]), Quantity: optArg(args, 1)}

	case "craft":
		if len(args) == 0 {
			return p.malformed(ln, "craft needs an item code")
		}
		return CraftStmt{Node: node, Item: exprOf(args[0]), Quantity: optArg(args, 1)}

	case "use":
		if len(args) == 0 {
			return p.malformed(ln, "use needs an item code")
		}
		return UseStmt{Node: node, Item: exprOf(args[0]), Quantity: optArg(args, 1)}

	case "market", "ge":
		return p.parseMarket(ln, args)

	case "npc":
		if len(args) < 2 {
			return p.malformed(ln, "npc needs buy|sell <item> [qty]")
		}
		op := TradeOp(strings.ToLower(args[0].Text))
		if op != TradeBuy && op != TradeSell {
			return p.malformed(ln, "npc needs buy|sell <item> [qty]")
		}
		return NPCStmt{Node: node, Op: op, Item: exprOf(args[1]), Quantity: optArg(args, 2)}

	case "task":
		return p.parseTask(ln, args)

	case "transition":
		return TransitionStmt{Node: node}
	case "rest":
		return RestStmt{Node: node}
	case "wait_cooldown":
		return WaitCooldownStmt{Node: node}

	case "sleep":
		if len(args) == 0 {
			return p.malformed(ln, "sleep needs a number of seconds")
		}
		return SleepStmt{Node: node, Seconds: exprOf(args[0])}

	case "log":
		parts := make([]string, 0, len(args))
		for _, t := range args {
			parts = append(parts, sourceText(t))
		}
		return LogStmt{Node: node, Message: strings.Join(parts, " ")}

	case "set":
		return p.parseSet(ln, args)
	}

	return p.unknown(ln, head)
}

func (p *parser) parseBank(ln Line, args []Token) Statement {
	node := Node{Line: ln.Number}
	if len(args) < 2 {
		return p.malformed(ln, "bank needs deposit|withdraw <item> [qty]")
	}
	op := BankOp(strings.ToLower(args[0].Text))
	if op != BankDeposit && op != BankWithdraw {
		return p.malformed(ln, "bank needs deposit|withdraw <item> [qty]")
	}

	target := strings.ToLower(args[1].Text)
	switch {
	case args[1].Kind == TokenWord && (target == "allitems" || target == "all"):
		if op == BankWithdraw {
			return p.malformed(ln, "bank withdraw needs an item code")
		}
		return BankStmt{Node: node, Op: op, All: true}
	case args[1].Kind == TokenWord && target == "gold":
		if len(args) < 3 {
			return p.malformed(ln, "bank %s gold needs an amount", op)
		}
		return BankStmt{Node: node, Op: op, Gold: true, Quantity: exprOf(args[2])}
	}
	return BankStmt{Node: node, Op: op, Item: exprOf(args[1]), Quantity: optArg(args, 2)}
}

func (p *parser) parseMarket(ln Line, args []Token) Statement {
	node := Node{Line: ln.Number}
	if len(args) == 0 {
		return p.malformed(ln, "market needs buy|sell|collect")
	}
	switch op := MarketOp(strings.ToLower(args[0].Text)); op {
	case MarketCollect:
		return MarketStmt{Node: node, Op: op}
	case MarketBuy, MarketSell:
		if len(args) < 2 {
			return p.malformed(ln, "market %s needs <item> [qty] [price]", op)
		}
		return MarketStmt{Node: node, Op: op, Item: exprOf(args[1]), Quantity: optArg(args, 2), Price: optArg(args, 3)}
	}
	return p.malformed(ln, "market needs buy|sell|collect")
}

func (p *parser) parseTask(ln Line, args []Token) Statement {
	node := Node{Line: ln.Number}
	if len(args) == 0 {
		return p.malformed(ln, "task needs new|complete|cancel|exchange|trade")
	}
	switch op := TaskOp(strings.ToLower(args[0].Text)); op {
	case TaskNew, TaskComplete, TaskCancel, TaskExchange:
		return TaskStmt{Node: node, Op: op}
	case TaskTrade:
		if len(args) < 2 {
			return p.malformed(ln, "task trade needs <item> [qty]")
		}
		return TaskStmt{Node: node, Op: op, Item: exprOf(args[1]), Quantity: optArg(args, 2)}
	}
	return p.malformed(ln, "task needs new|complete|cancel|exchange|trade")
}

// parseSet accepts "set name = value" and "set name value". Several value
// tokens are joined into one string.
func (p *parser) parseSet(ln Line, args []Token) Statement {
	if len(args) == 0 || (args[0].Kind != TokenWord && args[0].Kind != TokenVar) {
		return p.malformed(ln, "set needs <var> = <value>")
	}
	name := args[0].Text
	rest := args[1:]
	if len(rest) > 0 && rest[0].Kind == TokenAssign {
		rest = rest[1:]
	}
	stmt := SetStmt{Node: Node{Line: ln.Number}, Name: name}
	switch len(rest) {
	case 0:
		return p.malformed(ln, "set %s has no value", name)
	case 1:
		stmt.Value = exprOf(rest[0])
	default:
		parts := make([]string, 0, len(rest))
		for _, t := range rest {
			parts = append(parts, sourceText(t))
		}
		stmt.Value = StringLit{Value: strings.Join(parts, " ")}
	}
	return stmt
}

func (p *parser) malformed(ln Line, format string, args ...any) Statement {
	p.warnf(ln.Number, format, args...)
	return UnknownStmt{Node: Node{Line: ln.Number}, Head: strings.ToLower(ln.Tokens[0].Text)}
}

func (p *parser) unknown(ln Line, head string) Statement {
	if s := Suggest(head); s != "" {
		p.warnf(ln.Number, "unknown command %q (did you mean %q?)", head, s)
	} else {
		p.warnf(ln.Number, "unknown command %q", head)
	}
	return UnknownStmt{Node: Node{Line: ln.Number}, Head: head}
}

// Suggest returns the known command closest to word, or "" when nothing is
// close enough.
func Suggest(word string) string {
	if word == "" {
		return ""
	}
	ranks := fuzzy.RankFindFold(word, Commands)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range Commands {
		if d := fuzzy.LevenshteinDistance(word, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func optArg(args []Token, i int) Expr {
	if i < len(args) {
		return exprOf(args[i])
	}
	return nil
}

func trimColon(toks []Token) []Token {
	for len(toks) > 0 && toks[len(toks)-1].Kind == TokenColon {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// sourceText renders a token back into script text.
func sourceText(t Token) string {
	if t.Kind == TokenVar {
		return "{{" + t.Text + "}}"
	}
	return t.Text
}
