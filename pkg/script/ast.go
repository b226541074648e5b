package script

// Program is a parsed script. The statement tree is never modified after Parse.
type Program struct {
	Statements []Statement
	// Warnings collects lenient-parse findings (unknown commands, stray
	// indentation). They never stop a script from running.
	Warnings []string
}

// Statement is a closed set of node types; see the stmt marker method.
type Statement interface {
	Pos() int
	stmt()
}

// Node carries the source line of a statement.
type Node struct {
	Line int
}

func (n Node) Pos() int { return n.Line }
func (Node) stmt()      {}

// Expr is a number literal, string literal, variable reference or a word
// with embedded {{name}} placeholders.
type Expr interface {
	expr()
}

type NumberLit struct{ Value float64 }
type StringLit struct{ Value string }
type VarRef struct{ Name string }
type Template struct{ Text string }

func (NumberLit) expr() {}
func (StringLit) expr() {}
func (VarRef) expr()    {}
func (Template) expr()  {}

// GotoStmt moves to coordinates, or to a named location when Name is set.
type GotoStmt struct {
	Node
	X, Y Expr
	Name Expr
}

// GatherStmt gathers the resource on the current tile. Alias records which
// command was used (gather, woodcut, mine, fish).
type GatherStmt struct {
	Node
	Alias string
}

// FightStmt fights the monster on the current tile, travelling to Monster first
// when one is named.
type FightStmt struct {
	Node
	Monster Expr
}

type BankOp string

const (
	BankDeposit  BankOp = "deposit"
	BankWithdraw BankOp = "withdraw"
)

// BankStmt deposits or withdraws. All means every inventory item (deposit
// allitems); Gold means Item is ignored and Quantity is an amount of gold.
type BankStmt struct {
	Node
	Op       BankOp
	All      bool
	Gold     bool
	Item     Expr
	Quantity Expr
}

type EquipStmt struct {
	Node
	Item Expr
	Slot Expr
}

type UnequipStmt struct {
	Node
	Slot Expr
}

type RecycleStmt struct {
	Node
	Item     Expr
	Quantity Expr
}

type CraftStmt struct {
	Node
	Item     Expr
	Quantity Expr
}

type MarketOp string

const (
	MarketBuy     MarketOp = "buy"
	MarketSell    MarketOp = "sell"
	MarketCollect MarketOp = "collect"
)

type MarketStmt struct {
	Node
	Op       MarketOp
	Item     Expr
	Quantity Expr
	Price    Expr
}

type TradeOp string

const (
	TradeBuy  TradeOp = "buy"
	TradeSell TradeOp = "sell"
)

type NPCStmt struct {
	Node
	Op       TradeOp
	Item     Expr
	Quantity Expr
}

type TaskOp string

const (
	TaskNew      TaskOp = "new"
	TaskComplete TaskOp = "complete"
	TaskCancel   TaskOp = "cancel"
	TaskExchange TaskOp = "exchange"
	TaskTrade    TaskOp = "trade"
)

type TaskStmt struct {
	Node
	Op       TaskOp
	Item     Expr
	Quantity Expr
}

type UseStmt struct {
	Node
	Item     Expr
	Quantity Expr
}

type TransitionStmt struct{ Node }
type RestStmt struct{ Node }
type WaitCooldownStmt struct{ Node }

type SleepStmt struct {
	Node
	Seconds Expr
}

// LogStmt holds the raw message; {{name}} placeholders are filled at run time.
type LogStmt struct {
	Node
	Message string
}

type SetStmt struct {
	Node
	Name  string
	Value Expr
}

// IfStmt runs Body when Cond holds, otherwise Else. Else is nil without an else
// block.
type IfStmt struct {
	Node
	Cond Condition
	Body []Statement
	Else []Statement
}

type LoopKind int

const (
	LoopCount LoopKind = iota
	LoopUntil
	LoopWhile
	LoopForever
)

func (k LoopKind) String() string {
	switch k {
	case LoopCount:
		return "count"
	case LoopUntil:
		return "until"
	case LoopWhile:
		return "while"
	case LoopForever:
		return "forever"
	default:
		return "unknown"
	}
}

// LoopStmt covers all four loop forms. Count is set for LoopCount, Cond for
// LoopUntil and LoopWhile.
type LoopStmt struct {
	Node
	Kind  LoopKind
	Count Expr
	Cond  Condition
	Body  []Statement
}

// UnknownStmt is an unrecognized command. It runs as a logged no-op.
type UnknownStmt struct {
	Node
	Head string
}
