package dispatch

import (
	"errors"
	"testing"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
)

func TestIndirectCallDispatch(t *testing.T) {
	var tbl Table
	tbl.Install([]FuncMapping{
		{Address: 0x80001000, Fn: func(ctx *guestctx.Context, base []byte) {
			ctx.GPR[3].SetU32(0xCAFE)
		}},
	}, 0x80001000)

	var ctx guestctx.Context
	if err := tbl.Call(0x80001000, &ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ctx.GPR[3].U32(); got != 0xCAFE {
		t.Fatalf("expected r3=0xCAFE, got 0x%X", got)
	}
}

func TestUnmappedSlotTraps(t *testing.T) {
	var tbl Table
	tbl.Install([]FuncMapping{{Address: 0x80001000, Fn: func(*guestctx.Context, []byte) {}}}, 0x80002000)

	var ctx guestctx.Context
	err := tbl.Call(0x80001800, &ctx, nil)
	var unmapped *ErrUnmapped
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected ErrUnmapped, got %v", err)
	}
	if unmapped.Address != 0x80001800 {
		t.Fatalf("unexpected address in error: 0x%X", unmapped.Address)
	}
}

func TestSecondInstallPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second Install")
		}
	}()
	var tbl Table
	tbl.Install(nil, 0x80000000)
	tbl.Install(nil, 0x80000000)
}
