package executor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skeinlang/skein/pkg/diag"
	"github.com/skeinlang/skein/pkg/token"
)

func op(o token.Opcode) token.Value { return token.Operator(o) }

// run executes tokens to completion (or failure) on a fresh Machine and
// returns everything written to the PRINT sink.
func run(t *testing.T, tokens []token.Value, workers int) (string, error) {
	t.Helper()
	var out bytes.Buffer
	m := NewMachine(diag.Sink{Out: &out})
	m.Load(tokens)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Run(ctx, workers)
	return out.String(), err
}

func TestAddPrint(t *testing.T) {
	tokens := []token.Value{
		token.Int("2"), token.Int("3"), op(token.OpAdd), op(token.OpPrint),
	}
	got, err := run(t, tokens, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='5'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSubPrint(t *testing.T) {
	tokens := []token.Value{
		token.Int("10"), token.Int("2"), op(token.OpSub), op(token.OpPrint),
	}
	got, err := run(t, tokens, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='8'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestCaptureDupMacro builds `{ 7 } dup macro print macro print` by hand
// and checks the block is replayed twice, printing 7 both times -- this
// exercises block-capture orientation (top = first instruction) together
// with DUP-on-Symbol and MACRO's forward splice.
func TestCaptureDupMacro(t *testing.T) {
	tokens := []token.Value{
		op(token.OpBegin), token.Int("7"), op(token.OpEnd),
		op(token.OpDup),
		op(token.OpMacro), op(token.OpPrint),
		op(token.OpMacro), op(token.OpPrint),
	}
	got, err := run(t, tokens, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='7'\n" +
		"print: type=2, state=0, value='7'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestIf_TrueBranch and TestIf_FalseBranch build
// `<test> { 1 } { 0 } if print` by hand (capturing true/false blocks
// after the literal test value, matching IF's pop order
// false,true,test top-to-bottom).
func ifProgram(test string) []token.Value {
	return []token.Value{
		token.Int(test),
		op(token.OpBegin), token.Int("1"), op(token.OpEnd),
		op(token.OpBegin), token.Int("0"), op(token.OpEnd),
		op(token.OpIf), op(token.OpPrint),
	}
}

func TestIf_TrueBranch(t *testing.T) {
	got, err := run(t, ifProgram("1"), 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='1'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIf_FalseBranch(t *testing.T) {
	got, err := run(t, ifProgram("0"), 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='0'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestWhile_Countdown builds a named counter stack "ctr" initialized to
// 3, a body block that pops/prints/decrements/pushes it back, and a
// test block that peeks its current value, then drives them with a
// single WHILE. Expected output is the countdown 3, 2, 1 (each body
// invocation prints the value the counter held before decrementing).
func TestWhile_Countdown(t *testing.T) {
	sym := func(name string) token.Value { return token.Sym(name) }

	bodyBlock := []token.Value{
		sym("ctr"), op(token.OpPop), op(token.OpDup), op(token.OpPrint),
		token.Int("1"), op(token.OpSub), sym("ctr"), op(token.OpPush),
	}
	testBlock := []token.Value{
		sym("ctr"), op(token.OpPop), op(token.OpDup), sym("ctr"), op(token.OpPush),
	}

	tokens := []token.Value{
		token.Int("3"), sym("ctr"), op(token.OpDef),
	}
	tokens = append(tokens, op(token.OpBegin))
	tokens = append(tokens, bodyBlock...)
	tokens = append(tokens, op(token.OpEnd))
	tokens = append(tokens, op(token.OpBegin))
	tokens = append(tokens, testBlock...)
	tokens = append(tokens, op(token.OpEnd))
	tokens = append(tokens, op(token.OpWhile))

	got, err := run(t, tokens, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='3'\n" +
		"print: type=2, state=0, value='2'\n" +
		"print: type=2, state=0, value='1'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestCallJoinSync defines a two-parameter "fn" that adds its params
// and pushes the result onto its own OUT, calls it with 4 and 5,
// JOINs and then SYNCs on the returned Sentinel, and retrieves the
// delivered value with a plain POP (legal once the Sentinel flips to a
// Symbol naming the delivery stack). Expected output: 9.
func TestCallJoinSync(t *testing.T) {
	sym := func(name string) token.Value { return token.Sym(name) }

	body := []token.Value{
		sym("PARAMS"), op(token.OpPop),
		sym("PARAMS"), op(token.OpPop),
		op(token.OpAdd),
		sym("OUT"), op(token.OpPush),
	}

	tokens := []token.Value{op(token.OpBegin)}
	tokens = append(tokens, body...)
	tokens = append(tokens, op(token.OpEnd))
	tokens = append(tokens, sym("fn"), op(token.OpDef))
	tokens = append(tokens,
		token.Int("4"), token.Int("5"), sym("fn"), token.Int("2"), op(token.OpCall),
		op(token.OpJoin), op(token.OpSync), op(token.OpPop), op(token.OpPrint),
	)

	got, err := run(t, tokens, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='9'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPop_EmptyTargetExactMessage(t *testing.T) {
	tokens := []token.Value{
		token.Sym("CODE"), // CODE resolves but is already mid-drain/empty by the time POP runs
		op(token.OpPop),
	}
	_, err := run(t, tokens, 1)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrTargetEmpty) {
		t.Fatalf("got %v, want ErrTargetEmpty", err)
	}
	if err.Error() != "target stack empty: POP: Target stack empty!" {
		t.Fatalf("got %q, want exact POP message", err.Error())
	}
}

func TestCall_ParamUnderflow(t *testing.T) {
	tokens := []token.Value{
		op(token.OpBegin), op(token.OpEnd), // empty function body
		token.Sym("fn"), op(token.OpDef),
		token.Sym("fn"), token.Int("2"), op(token.OpCall), // no params pushed
	}
	_, err := run(t, tokens, 1)
	if !errors.Is(err, ErrUnderflow) {
		t.Fatalf("got %v, want ErrUnderflow", err)
	}
}

func TestJoin_ImmediateCompletion(t *testing.T) {
	// JOIN on a CURRENT that is already fully joined (no pending
	// Sentinels) must proceed without ever actually suspending.
	tokens := []token.Value{
		token.Int("1"), op(token.OpJoin), op(token.OpPrint),
	}
	got, err := run(t, tokens, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "print: type=2, state=0, value='1'\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
