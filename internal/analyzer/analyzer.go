package analyzer

import (
	"github.com/cockroachdb/errors"

	"github.com/xenonrecomp/xenonrecomp/internal/ppc"
)

// Options configures the thresholds function discovery uses.
type Options struct {
	DataRegionThreshold     int    // consecutive undecodable words before a region is marked data; default 16
	LargeFunctionThreshold  uint32 // bytes; default 1 MiB
	MaxJumpExtension        uint32 // bytes a function may stretch to cover a jump-table target
	Force                   bool   // proceed past validation diagnostics
	EnableExceptionHandlers bool   // seed discovery from hints.ExceptionHandlerFuncHints
}

// DefaultOptions returns the thresholds used when a caller doesn't
// override them.
func DefaultOptions() Options {
	return Options{
		DataRegionThreshold:    16,
		LargeFunctionThreshold: 1 << 20,
		MaxJumpExtension:       4096,
	}
}

type seed struct {
	addr   uint32
	parent uint32 // 0 for a top-level function seed
}

// Load disassembles img's executable sections into a function graph,
// following the algorithm in.1: seed from entry points and
// hints, sweep linearly until a terminator, enqueue branch/call
// targets, carve out undecodable runs as data.
func Load(img *Image, hints *Hints, opts Options) (*FunctionGraph, []error) {
	if hints == nil {
		hints = EmptyHints()
	}

	graph := &FunctionGraph{}
	var diags []error

	visited := map[uint32]bool{}
	queue := []seed{{addr: img.EntryPoint}}
	for addr, h := range hints.Functions {
		queue = append(queue, seed{addr: addr, parent: h.Parent})
	}
	for _, addr := range hints.KnownIndirectCallHints {
		queue = append(queue, seed{addr: addr})
	}
	if opts.EnableExceptionHandlers {
		for _, addr := range hints.ExceptionHandlerFuncHints {
			queue = append(queue, seed{addr: addr})
		}
	}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s.addr] {
			continue
		}
		visited[s.addr] = true

		fn, newSeeds, fnDataRegions, fnDiags := discoverFunction(img, hints, opts, s.addr, s.parent)
		diags = append(diags, fnDiags...)
		graph.DataRegions = append(graph.DataRegions, fnDataRegions...)
		if fn != nil {
			graph.Functions = append(graph.Functions, fn)
		}
		for _, ns := range newSeeds {
			if !visited[ns] {
				queue = append(queue, seed{addr: ns})
			}
		}
	}

	diags = append(diags, validateOverlaps(graph, opts)...)
	return graph, diags
}

// discoverFunction linearly sweeps from entry, following the
// fallthrough/conditional-branch/call worklist, until an unconditional
// terminator (`blr`/`bctr` not proven to
// be a tail call, or an unconditional `b`).
func discoverFunction(img *Image, hints *Hints, opts Options, entry uint32, parent uint32) (*Function, []uint32, []DataRegion, []error) {
	hint, hasHint := hints.Functions[entry]

	fn := &Function{Entry: entry, Parent: parent}
	if hasHint {
		fn.Name = hint.Name
	}

	var diags []error
	var calleeSeeds []uint32
	var dataRegions []DataRegion
	var blockQueue = []uint32{entry}
	blockStarts := map[uint32]bool{entry: true}
	doneBlocks := map[uint32]bool{}

	maxEnd := entry
	explicitEnd, hasExplicitEnd := explicitFunctionEnd(hint, entry, hasHint)

	undecodableRun := 0

	for len(blockQueue) > 0 {
		start := blockQueue[0]
		blockQueue = blockQueue[1:]
		if doneBlocks[start] {
			continue
		}
		doneBlocks[start] = true

		if hasExplicitEnd && start >= explicitEnd {
			continue
		}

		block, succs, newCallees, blockEnd, term, ok, dataRegion := sweepBlock(img, hints, start, opts, &undecodableRun)
		if !ok {
			if dataRegion != nil {
				dataRegions = append(dataRegions, *dataRegion)
			}
			continue
		}
		block.Successors = succs
		fn.Blocks = append(fn.Blocks, block)
		calleeSeeds = append(calleeSeeds, newCallees...)
		if blockEnd > maxEnd {
			maxEnd = blockEnd
		}

		if jt, recovered := maybeRecoverJumpTable(img, hints, block, term); recovered {
			fn.JumpTables = append(fn.JumpTables, jt)
			for _, t := range jt.Targets {
				if t < entry || t-entry > opts.MaxJumpExtension+fn.Size {
					continue
				}
				if !blockStarts[t] {
					blockStarts[t] = true
					blockQueue = append(blockQueue, t)
				}
			}
		}

		for _, s := range succs {
			if !blockStarts[s] {
				blockStarts[s] = true
				blockQueue = append(blockQueue, s)
			}
		}
	}

	if hasExplicitEnd {
		fn.Size = explicitEnd - entry
	} else {
		fn.Size = maxEnd - entry
	}

	if fn.Size > opts.LargeFunctionThreshold {
		diags = append(diags, newDiagnostic(KindOversizeFunction, entry,
			errors.Newf("function is %d bytes, exceeds threshold %d", fn.Size, opts.LargeFunctionThreshold)))
		if !opts.Force {
			return nil, calleeSeeds, dataRegions, diags
		}
	}

	return fn, calleeSeeds, dataRegions, diags
}

func explicitFunctionEnd(hint FunctionHint, entry uint32, hasHint bool) (uint32, bool) {
	if !hasHint {
		return 0, false
	}
	if hint.End != 0 {
		return hint.End, true
	}
	if hint.Size != 0 {
		return entry + hint.Size, true
	}
	return 0, false
}

// sweepBlock decodes instructions from start until a terminator,
// returning the block, its fallthrough/branch successors, any newly
// discovered call targets, and the terminator kind.
func sweepBlock(img *Image, hints *Hints, start uint32, opts Options, undecodableRun *int) (*BasicBlock, []uint32, []uint32, uint32, Terminator, bool, *DataRegion) {
	block := &BasicBlock{Start: start}
	addr := start

	for {
		if size, invalid := hints.InvalidInstructionHints[addr]; invalid {
			addr += size
			block.End = addr
			block.Terminator = TermFallthrough
			return block, []uint32{addr}, nil, addr, TermFallthrough, true, nil
		}

		w, ok := img.ReadWord(addr)
		if !ok || !img.Executable(addr) {
			return nil, nil, nil, addr, TermFallthrough, false, nil
		}

		in, err := ppc.Decode(w, addr)
		if err != nil {
			*undecodableRun++
			if *undecodableRun >= opts.DataRegionThreshold {
				runStart := addr - uint32(*undecodableRun-1)*4
				region := &DataRegion{Start: runStart, End: addr + 4}
				return nil, nil, nil, addr, TermFallthrough, false, region
			}
			block.Instructions = append(block.Instructions, in)
			addr += 4
			continue
		}
		*undecodableRun = 0

		block.Instructions = append(block.Instructions, in)
		next := addr + 4

		switch in.Op {
		case ppc.B:
			target := branchTarget(in.Addr, in.LI, in.AA)
			block.End = next
			if in.LK {
				block.Terminator = TermDirectBranch
				return block, []uint32{next}, []uint32{target}, next, TermDirectBranch, true, nil
			}
			block.Terminator = TermDirectBranch
			return block, []uint32{target}, nil, next, TermDirectBranch, true, nil
		case ppc.Bc:
			target := branchTarget(in.Addr, in.BD, in.AA)
			block.End = next
			block.Terminator = TermConditionalBranch
			if in.LK {
				return block, []uint32{next}, []uint32{target}, next, TermConditionalBranch, true, nil
			}
			return block, []uint32{next, target}, nil, next, TermConditionalBranch, true, nil
		case ppc.Bclr:
			block.End = next
			block.Terminator = TermReturn
			return block, nil, nil, next, TermReturn, true, nil
		case ppc.Bcctr:
			block.End = next
			block.Terminator = TermIndirectDispatch
			return block, nil, nil, next, TermIndirectDispatch, true, nil
		case ppc.Sc:
			block.End = next
			block.Terminator = TermTrapFallthrough
			return block, []uint32{next}, nil, next, TermTrapFallthrough, true, nil
		}

		addr = next
	}
}

func branchTarget(at uint32, disp int32, absolute bool) uint32 {
	if absolute {
		return uint32(disp)
	}
	return uint32(int64(at) + int64(disp))
}

func maybeRecoverJumpTable(img *Image, hints *Hints, block *BasicBlock, term Terminator) (JumpTable, bool) {
	if term != TermIndirectDispatch || len(block.Instructions) == 0 {
		return JumpTable{}, false
	}
	bctrAddr := block.Instructions[len(block.Instructions)-1].Addr

	if h, ok := hints.SwitchTables[bctrAddr]; ok {
		jt := JumpTable{Site: bctrAddr, Base: h.Base, Count: h.Count, Stride: h.Stride, GuardReg: -1}
		if targets, ok := tableTargets(img, jt); ok {
			jt.Targets = targets
		}
		return jt, true
	}

	lookback := jumpTableLookback
	if lookback > len(block.Instructions) {
		lookback = len(block.Instructions)
	}
	window := block.Instructions[len(block.Instructions)-lookback:]
	return recoverJumpTable(img, bctrAddr, window)
}

func validateOverlaps(graph *FunctionGraph, opts Options) []error {
	var diags []error
	for i, a := range graph.Functions {
		for j, b := range graph.Functions {
			if i >= j {
				continue
			}
			if a.Entry < b.Entry+b.Size && b.Entry < a.Entry+a.Size {
				diags = append(diags, newDiagnostic(KindOverlappingFunctions, a.Entry,
					errors.Newf("overlaps function at 0x%08X", b.Entry)))
			}
		}
	}
	return diags
}
