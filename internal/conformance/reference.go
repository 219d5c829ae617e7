// Package conformance compares an emitted function's behavior against
// a golden vector recorded from a reference run, generalizing
// virtualxt's event-recording validator (record a live CPU trace,
// replay it against a second CPU, diff the two) to this recompiler's
// static-translation shape: there is no second CPU to run the guest
// binary on, so a vector instead records the register/memory state
// before and after one call, and the harness invokes the emitted
// function directly and diffs its result against the recording.
package conformance

import "github.com/xenonrecomp/xenonrecomp/internal/guestctx"

// MemOp is one byte-granular memory observation, the same shape
// virtualxt's validator.MemOp records (Addr, Data), minus the
// fixed-size array-plus-sentinel convention a Go slice doesn't need.
type MemOp struct {
	Addr uint32 `json:"addr"`
	Data byte   `json:"data"`
}

// RegSnapshot captures the subset of guestctx.Context a vector cares
// about. Fields are sparse maps keyed by register index rather than
// full arrays, since most vectors exercise a handful of registers and
// JSON-encoding 32 mostly-zero GPRs per vector would bloat every
// golden file for no signal.
type RegSnapshot struct {
	GPR map[int]uint64 `json:"gpr,omitempty"`
	FPR map[int]uint64 `json:"fpr,omitempty"`
	CR0 *CRSnapshot    `json:"cr0,omitempty"`
	XER *XERSnapshot   `json:"xer,omitempty"`
	LR  *uint32        `json:"lr,omitempty"`
	CTR *uint32        `json:"ctr,omitempty"`
}

type CRSnapshot struct {
	LT, GT, EQ, SO bool
}

type XERSnapshot struct {
	SO, OV, CA bool
}

// Vector is one golden test case: the mnemonic/address under test, the
// register and memory state to prime the context and arena with
// before the call, and the expected state afterward.
type Vector struct {
	Name   string      `json:"name"`
	Input  RegSnapshot `json:"input"`
	MemIn  []MemOp     `json:"mem_in,omitempty"`
	Output RegSnapshot `json:"output"`
	MemOut []MemOp     `json:"mem_out,omitempty"`
}

// Apply primes ctx/base with the vector's input snapshot.
func (v *Vector) Apply(ctx *guestctx.Context, base []byte) {
	for r, val := range v.Input.GPR {
		ctx.GPR[r].SetU64(val)
	}
	for r, val := range v.Input.FPR {
		ctx.FPR[r].SetU64(val)
	}
	if v.Input.CR0 != nil {
		ctx.CR[0] = guestctx.CRField(*v.Input.CR0)
	}
	if v.Input.XER != nil {
		ctx.XER = guestctx.XER(*v.Input.XER)
	}
	if v.Input.LR != nil {
		ctx.LR = *v.Input.LR
	}
	if v.Input.CTR != nil {
		ctx.CTR = *v.Input.CTR
	}
	for _, op := range v.MemIn {
		base[op.Addr] = op.Data
	}
}
