package emitter

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/xenonrecomp/xenonrecomp/internal/analyzer"
	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// emitFn lowers one decoded instruction into IR statements appended to
// body. Implementations live in arith.go/loadstore.go/fp.go/vector.go/
// branch.go.
type emitFn func(in ppc.Instruction) []Stmt

// dispatchTable is the dense, mnemonic-indexed emit table: opcode
// dispatch is a flat function-pointer array, not interface dispatch,
// mirroring lookup.go's modRMLookup and cpu.execute()'s switch
// generalized to a slice indexed by Mnemonic instead of by raw opcode
// byte.
var dispatchTable [int(ppc.Td) + 1]emitFn

func init() {
	registerArith(&dispatchTable)
	registerLoadStore(&dispatchTable)
	registerFP(&dispatchTable)
	registerVector(&dispatchTable)
	registerBranch(&dispatchTable)
	registerTrap(&dispatchTable)
	registerSPR(&dispatchTable)
}

// funcName is the `Fn_<addr>` naming convention every emitted function
// and dispatch mapping entry uses.
func funcName(addr uint32) string { return fmt.Sprintf("Fn_%08X", addr) }

// gpr reads GPR n in full 64-bit form.
func gpr(n int) string { return fmt.Sprintf("ctx.GPR[%d]", n) }

// gprU32/gprS32 narrow a GPR read to the 32-bit view arithmetic and
// address computation operate on.
func gprU32(n int) string { return fmt.Sprintf("ctx.GPR[%d].U32()", n) }
func gprS32(n int) string { return fmt.Sprintf("ctx.GPR[%d].S32()", n) }
func gprU64(n int) string { return fmt.Sprintf("ctx.GPR[%d].U64()", n) }
func gprS64(n int) string { return fmt.Sprintf("ctx.GPR[%d].S64()", n) }

// raOrZero implements the PowerPC convention that RA==0 means the
// literal value 0 rather than register r0's contents, for the D/X-form
// instructions (addi, loads, stores, indexed addressing) whose manual
// entry says "RA|0".
func raOrZero(ra int) string {
	if ra == 0 {
		return "0"
	}
	return gprU32(ra)
}

// Emitter lowers one FunctionGraph into Go source, accumulating
// per-function diagnostics the same way internal/analyzer does, for
// opcodes Decode recognizes but this emitter has not implemented.
type Emitter struct {
	PackageName string
}

// EmitGraph lowers every function in graph into one FuncDecl, in a
// deterministic (entry-address-sorted) order so repeated runs over the
// same input produce byte-identical output.
func (e *Emitter) EmitGraph(img *analyzer.Image, graph *analyzer.FunctionGraph) ([]FuncDecl, []error) {
	funcs := append([]*analyzer.Function(nil), graph.Functions...)
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Entry < funcs[j].Entry })

	var decls []FuncDecl
	var diags []error
	for _, fn := range funcs {
		decl, fnDiags := e.emitFunction(img, fn)
		diags = append(diags, fnDiags...)
		decls = append(decls, decl)
	}
	return decls, diags
}

func (e *Emitter) emitFunction(img *analyzer.Image, fn *analyzer.Function) (FuncDecl, []error) {
	decl := FuncDecl{Name: funcName(fn.Entry), Addr: fn.Entry}
	var diags []error

	blocks := append([]*analyzer.BasicBlock(nil), fn.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	for _, b := range blocks {
		if len(fn.Blocks) > 1 {
			decl.Body = append(decl.Body, Raw(fmt.Sprintf("loc_%08X:", b.Start)))
		}
		for i, in := range b.Instructions {
			isLast := i == len(b.Instructions)-1
			if isLast && b.Terminator == analyzer.TermIndirectDispatch {
				if jt := findJumpTable(fn, in.Addr); jt != nil {
					decl.Body = append(decl.Body, emitJumpTableSwitch(*jt))
					continue
				}
			}
			stmts, err := e.emitInstruction(in)
			if err != nil {
				diags = append(diags, errors.Wrapf(err, "Fn_%08X", fn.Entry))
				decl.Body = append(decl.Body, Comment(fmt.Sprintf("unimplemented: %s at 0x%08X", in.Op, in.Addr)))
				continue
			}
			decl.Body = append(decl.Body, stmts...)
		}
		if len(b.Successors) == 1 && b.Terminator != analyzer.TermDirectBranch && b.Terminator != analyzer.TermConditionalBranch {
			decl.Body = append(decl.Body, Raw(fmt.Sprintf("goto loc_%08X", b.Successors[0])))
		}
	}
	return decl, diags
}

// findJumpTable returns the jump table recovered at site, if any.
func findJumpTable(fn *analyzer.Function, site uint32) *analyzer.JumpTable {
	for i := range fn.JumpTables {
		if fn.JumpTables[i].Site == site {
			return &fn.JumpTables[i]
		}
	}
	return nil
}

func (e *Emitter) emitInstruction(in ppc.Instruction) ([]Stmt, error) {
	fn := dispatchTable[in.Op]
	if fn == nil {
		return nil, errors.Newf("no emitter registered for opcode %s", in.Op)
	}
	return fn(in), nil
}
