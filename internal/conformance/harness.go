package conformance

import (
	"fmt"

	"github.com/xenonrecomp/xenonrecomp/internal/dispatch"
	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

// Mismatch describes one field or byte that disagreed with a vector's
// expected output.
type Mismatch struct {
	Field string
	Want  uint64
	Got   uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want 0x%X, got 0x%X", m.Field, m.Want, m.Got)
}

// Run calls fn against a fresh context primed from v.Input/v.MemIn,
// then diffs the resulting state against v.Output/v.MemOut. An empty
// return means the vector passed.
func Run(fn dispatch.GuestFunc, base []byte, v *Vector) []Mismatch {
	ctx := &guestctx.Context{}
	v.Apply(ctx, base)
	fn(ctx, base)
	return Diff(ctx, base, v)
}

// Diff compares ctx/base against v's expected output, reporting every
// register and byte that disagrees rather than stopping at the first.
func Diff(ctx *guestctx.Context, base []byte, v *Vector) []Mismatch {
	var mismatches []Mismatch

	for r, want := range v.Output.GPR {
		if got := ctx.GPR[r].U64(); got != want {
			mismatches = append(mismatches, Mismatch{fmt.Sprintf("r%d", r), want, got})
		}
	}
	for r, want := range v.Output.FPR {
		if got := ctx.FPR[r].U64(); got != want {
			mismatches = append(mismatches, Mismatch{fmt.Sprintf("f%d", r), want, got})
		}
	}
	if v.Output.CR0 != nil {
		want := *v.Output.CR0
		got := CRSnapshot(ctx.CR[0])
		if got != want {
			mismatches = append(mismatches, Mismatch{"cr0", crBits(want), crBits(got)})
		}
	}
	if v.Output.XER != nil {
		want := *v.Output.XER
		got := XERSnapshot(ctx.XER)
		if got != want {
			mismatches = append(mismatches, Mismatch{"xer", xerBits(want), xerBits(got)})
		}
	}
	if v.Output.LR != nil && *v.Output.LR != ctx.LR {
		mismatches = append(mismatches, Mismatch{"lr", uint64(*v.Output.LR), uint64(ctx.LR)})
	}
	if v.Output.CTR != nil && *v.Output.CTR != ctx.CTR {
		mismatches = append(mismatches, Mismatch{"ctr", uint64(*v.Output.CTR), uint64(ctx.CTR)})
	}
	for _, op := range v.MemOut {
		if got := base[op.Addr]; got != op.Data {
			mismatches = append(mismatches, Mismatch{fmt.Sprintf("mem[0x%X]", op.Addr), uint64(op.Data), uint64(got)})
		}
	}
	return mismatches
}

func crBits(c CRSnapshot) uint64 {
	var b uint64
	if c.LT {
		b |= 1
	}
	if c.GT {
		b |= 2
	}
	if c.EQ {
		b |= 4
	}
	if c.SO {
		b |= 8
	}
	return b
}

func xerBits(x XERSnapshot) uint64 {
	var b uint64
	if x.SO {
		b |= 1
	}
	if x.OV {
		b |= 2
	}
	if x.CA {
		b |= 4
	}
	return b
}
