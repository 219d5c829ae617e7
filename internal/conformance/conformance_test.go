package conformance

import (
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

// addImmediate stands in for an emitted `addi r3, r4, 5` function.
func addImmediate(ctx *guestctx.Context, base []byte) {
	ctx.GPR[3].SetU32(ctx.GPR[4].U32() + 5)
}

func TestRunPassesOnMatchingVector(t *testing.T) {
	base := make([]byte, 0x10000)
	v := &Vector{
		Name:   "addi r3, r4, 5",
		Input:  RegSnapshot{GPR: map[int]uint64{4: 10}},
		Output: RegSnapshot{GPR: map[int]uint64{3: 15}},
	}
	if mismatches := Run(addImmediate, base, v); len(mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %v", mismatches)
	}
}

func TestRunReportsEveryMismatch(t *testing.T) {
	base := make([]byte, 0x10000)
	v := &Vector{
		Name:   "addi r3, r4, 5 (wrong expectation)",
		Input:  RegSnapshot{GPR: map[int]uint64{4: 10}},
		Output: RegSnapshot{GPR: map[int]uint64{3: 16, 5: 1}},
	}
	mismatches := Run(addImmediate, base, v)
	if len(mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %d: %v", len(mismatches), mismatches)
	}
}

func TestDiffCatchesMemoryAndFlagMismatches(t *testing.T) {
	base := make([]byte, 0x10000)
	base[0x100] = 0x42

	lt := true
	v := &Vector{
		Output: RegSnapshot{CR0: &CRSnapshot{LT: lt}},
		MemOut: []MemOp{{Addr: 0x100, Data: 0x99}},
	}
	ctx := &guestctx.Context{}
	mismatches := Diff(ctx, base, v)
	if len(mismatches) != 2 {
		t.Fatalf("expected cr0 and memory mismatches, got %v", mismatches)
	}
}
