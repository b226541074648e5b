package script

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(v float64) Expr { return NumberLit{Value: v} }
func str(v string) Expr  { return StringLit{Value: v} }

func TestParse_SingleLineStatements(t *testing.T) {
	tests := []struct {
		src  string
		want Statement
	}{
		{"goto 2 0", GotoStmt{Node: Node{1}, X: num(2), Y: num(0)}},
		{"goto bank", GotoStmt{Node: Node{1}, Name: str("bank")}},
		{"goto {{x}} {{y}}", GotoStmt{Node: Node{1}, X: VarRef{"x"}, Y: VarRef{"y"}}},
		{"mine", GatherStmt{Node: Node{1}, Alias: "mine"}},
		{"woodcut", GatherStmt{Node: Node{1}, Alias: "woodcut"}},
		{"fight", FightStmt{Node: Node{1}}},
		{"fight chicken", FightStmt{Node: Node{1}, Monster: str("chicken")}},
		{"craft copper_dagger 3", CraftStmt{Node: Node{1}, Item: str("copper_dagger"), Quantity: num(3)}},
		{"craft copper_dagger", CraftStmt{Node: Node{1}, Item: str("copper_dagger")}},
		{"craft {{metal}}_bar 2", CraftStmt{Node: Node{1}, Item: Template{"{{metal}}_bar"}, Quantity: num(2)}},
		{"bank deposit allitems", BankStmt{Node: Node{1}, Op: BankDeposit, All: true}},
		{"bank deposit copper_ore", BankStmt{Node: Node{1}, Op: BankDeposit, Item: str("copper_ore")}},
		{"bank withdraw copper_ore 20", BankStmt{Node: Node{1}, Op: BankWithdraw, Item: str("copper_ore"), Quantity: num(20)}},
		{"bank deposit gold 500", BankStmt{Node: Node{1}, Op: BankDeposit, Gold: true, Quantity: num(500)}},
		{"equip copper_dagger", EquipStmt{Node: Node{1}, Item: str("copper_dagger")}},
		{"equip copper_ring ring1", EquipStmt{Node: Node{1}, Item: str("copper_ring"), Slot: str("ring1")}},
		{"unequip weapon", UnequipStmt{Node: Node{1}, Slot: str("weapon")}},
		{"recycle wooden_staff 2", RecycleStmt{Node: Node{1}, Item: str("wooden_staff"), Quantity: num(2)}},
		{"npc buy apple 5", NPCStmt{Node: Node{1}, Op: TradeBuy, Item: str("apple"), Quantity: num(5)}},
		{"npc sell feather", NPCStmt{Node: Node{1}, Op: TradeSell, Item: str("feather")}},
		{"task new", TaskStmt{Node: Node{1}, Op: TaskNew}},
		{"task trade copper_ore 10", TaskStmt{Node: Node{1}, Op: TaskTrade, Item: str("copper_ore"), Quantity: num(10)}},
		{"market sell copper_ore 10 5", MarketStmt{Node: Node{1}, Op: MarketSell, Item: str("copper_ore"), Quantity: num(10), Price: num(5)}},
		{"ge collect", MarketStmt{Node: Node{1}, Op: MarketCollect}},
		{"use small_health_potion", UseStmt{Node: Node{1}, Item: str("small_health_potion")}},
		{"transition", TransitionStmt{Node{1}}},
		{"rest", RestStmt{Node{1}}},
		{"wait_cooldown", WaitCooldownStmt{Node{1}}},
		{"sleep 2.5", SleepStmt{Node: Node{1}, Seconds: num(2.5)}},
		{`log "Hello {{name}}"`, LogStmt{Node: Node{1}, Message: "Hello {{name}}"}},
		{"log ore {{n}}", LogStmt{Node: Node{1}, Message: "ore {{n}}"}},
		{"set count = 5", SetStmt{Node: Node{1}, Name: "count", Value: num(5)}},
		{"set item copper_ore", SetStmt{Node: Node{1}, Name: "item", Value: str("copper_ore")}},
		{"set label = big ore", SetStmt{Node: Node{1}, Name: "label", Value: str("big ore")}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog, err := Parse(tt.src)
			require.NoError(t, err)
			require.Len(t, prog.Statements, 1)
			if diff := cmp.Diff(tt.want, prog.Statements[0]); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
			assert.Empty(t, prog.Warnings)
		})
	}
}

func TestParse_IfElse(t *testing.T) {
	withElse := `
if inventory_full:
  goto bank
  bank deposit allitems
else:
  mine
`
	prog, err := Parse(withElse)
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)

	want := IfStmt{
		Node: Node{2},
		Cond: InventoryFull{},
		Body: []Statement{
			GotoStmt{Node: Node{3}, Name: str("bank")},
			BankStmt{Node: Node{4}, Op: BankDeposit, All: true},
		},
		Else: []Statement{GatherStmt{Node: Node{6}, Alias: "mine"}},
	}
	if diff := cmp.Diff(want, prog.Statements[0]); diff != "" {
		t.Errorf("if/else mismatch (-want +got):\n%s", diff)
	}

	withoutElse := strings.Replace(withElse, "else:\n  mine\n", "", 1)
	prog, err = Parse(withoutElse)
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
	ifStmt := prog.Statements[0].(IfStmt)
	assert.Len(t, ifStmt.Body, 2)
	assert.Nil(t, ifStmt.Else)
}

func TestParse_Loops(t *testing.T) {
	src := `
loop 5:
    mine
loop until inventory_full:
    fish
loop while hp_percent >= 50:
    fight
loop forever:
    rest
`
	prog, err := Parse(src)
	require.NoError(t, err)

	want := []Statement{
		LoopStmt{Node: Node{2}, Kind: LoopCount, Count: num(5), Body: []Statement{GatherStmt{Node{3}, "mine"}}},
		LoopStmt{Node: Node{4}, Kind: LoopUntil, Cond: InventoryFull{}, Body: []Statement{GatherStmt{Node{5}, "fish"}}},
		LoopStmt{Node: Node{6}, Kind: LoopWhile, Cond: HPPercent{Comparison{Op: OpGE, Value: num(50)}}, Body: []Statement{FightStmt{Node: Node{7}}}},
		LoopStmt{Node: Node{8}, Kind: LoopForever, Body: []Statement{RestStmt{Node{9}}}},
	}
	if diff := cmp.Diff(want, prog.Statements); diff != "" {
		t.Errorf("loops mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NestedBlocksUseFirstLineDepth(t *testing.T) {
	src := `
loop 2:
      if has_item copper_ore 5:
         craft copper_bar
      else:
         mine
      log "done"
rest
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Statements, 2)

	loop := prog.Statements[0].(LoopStmt)
	require.Len(t, loop.Body, 2)
	inner := loop.Body[0].(IfStmt)
	assert.Equal(t, HasItem{Code: str("copper_ore"), Quantity: num(5)}, inner.Cond)
	assert.Len(t, inner.Body, 1)
	assert.Len(t, inner.Else, 1)
	assert.IsType(t, LogStmt{}, loop.Body[1])
	assert.IsType(t, RestStmt{}, prog.Statements[1])
	assert.Empty(t, prog.Warnings)
}

func TestParse_Conditions(t *testing.T) {
	tests := []struct {
		src  string
		want Condition
	}{
		{"inventory_space < 5", InventorySpace{Comparison{OpLT, num(5)}}},
		{"has_item copper_ore", HasItem{Code: str("copper_ore"), Quantity: num(1)}},
		{"mining_level >= 10", SkillLevel{Skill: "mining", Comparison: Comparison{OpGE, num(10)}}},
		{"skill_level fishing == 3", SkillLevel{Skill: "fishing", Comparison: Comparison{OpEQ, num(3)}}},
		{"combat_level > 4", SkillLevel{Skill: OverallLevel, Comparison: Comparison{OpGT, num(4)}}},
		{"hp <= 40", HP{Comparison{OpLE, num(40)}}},
		{"gold != {{budget}}", Gold{Comparison{OpNE, VarRef{"budget"}}}},
		{"at_location 1 2", AtLocation{X: num(1), Y: num(2)}},
		{"has_task", HasTask{}},
		{"task_progress_complete", TaskProgressComplete{}},
		{"task_coins >= 6", TaskCoins{Comparison{OpGE, num(6)}}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog, err := Parse("if " + tt.src + ":\n  rest\n")
			require.NoError(t, err)
			got := prog.Statements[0].(IfStmt).Cond
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("condition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_HardErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unknown condition", "mine\nif sparkles > 2:\n  rest\n", 2},
		{"bad operator", "loop until gold = 5:\n  mine\n", 1},
		{"missing value", "loop while hp <:\n  rest\n", 1},
		{"unknown condition in nested block", "loop 2:\n  if wings:\n    rest\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			assert.Nil(t, prog)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParse_LenientWarnings(t *testing.T) {
	src := `
goto 1 1
    mine
mien
else:
  rest
`
	prog, err := Parse(src)
	require.NoError(t, err)

	require.Len(t, prog.Statements, 3)
	assert.IsType(t, GotoStmt{}, prog.Statements[0])
	assert.Equal(t, UnknownStmt{Node: Node{4}, Head: "mien"}, prog.Statements[1])
	assert.Equal(t, UnknownStmt{Node: Node{5}, Head: "else"}, prog.Statements[2])

	require.Len(t, prog.Warnings, 4)
	assert.Contains(t, prog.Warnings[0], "line 3: unexpected indentation")
	assert.Contains(t, prog.Warnings[1], `did you mean "mine"`)
	assert.Contains(t, prog.Warnings[2], "else without a matching if")
	assert.Contains(t, prog.Warnings[3], "line 6: unexpected indentation")
}

func TestParse_Empty(t *testing.T) {
	prog, err := Parse("\n# just a comment\n\n")
	require.NoError(t, err)
	assert.Empty(t, prog.Statements)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "mine", Suggest("mien"))
	assert.Equal(t, "craft", Suggest("crfat"))
	assert.Equal(t, "", Suggest("xyzzyplugh"))
}

// scriptGen produces small well-formed scripts from a fixed vocabulary.
func scriptGen() gopter.Gen {
	lines := []string{
		"goto 1 2", "mine", "fight chicken", "bank deposit allitems", "rest",
		"craft copper_bar 2", "log \"hi {{n}}\"", "set n = 3", "sleep 1",
		"if inventory_full:", "loop 3:", "loop until gold > 10:", "else:",
	}
	return gen.SliceOf(gen.IntRange(0, 4*len(lines)-1)).Map(func(picks []int) string {
		var b strings.Builder
		for _, p := range picks {
			b.WriteString(strings.Repeat("  ", p/len(lines)))
			b.WriteString(lines[p%len(lines)])
			b.WriteString("\n")
		}
		return b.String()
	})
}

func TestParse_Deterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("parsing twice yields equal programs", prop.ForAll(
		func(src string) bool {
			a, errA := Parse(src)
			b, errB := Parse(src)
			if (errA == nil) != (errB == nil) {
				return false
			}
			return cmp.Equal(a, b)
		},
		scriptGen(),
	))
	properties.TestingRun(t)
}
