package analyzer

import "github.com/xenonrecomp/xenonrecomp/internal/ppc"

const mtctrSPR = 9

// jumpTableLookback bounds how many preceding instructions the
// heuristic inspects for the bounds-check/index/load pattern that
// precedes a genuine computed-switch `bctr`.
const jumpTableLookback = 8

// recoverJumpTable finds the bounds-check + indexed-load pattern that
// must precede a genuine switch dispatch through ctr, walking
// backward from the bctr site. It returns ok=false when the pattern
// isn't present (a declared hint should be used instead) rather than
// guessing.
func recoverJumpTable(img *Image, bctrAddr uint32, window []ppc.Instruction) (JumpTable, bool) {
	var lwzx, rlwinm, cmp *ppc.Instruction

	for i := len(window) - 1; i >= 0; i-- {
		in := &window[i]
		switch in.Op {
		case ppc.Mtspr:
			if in.SPR != mtctrSPR {
				return JumpTable{}, false
			}
		case ppc.Lwzx:
			if lwzx == nil {
				lwzx = in
			}
		case ppc.Rlwinm:
			if lwzx != nil && rlwinm == nil && in.RA == lwzx.RB {
				rlwinm = in
			}
		case ppc.Cmpi, ppc.Cmpli:
			if rlwinm != nil && cmp == nil && in.RA == rlwinm.RS {
				cmp = in
				goto found
			}
		}
	}
	return JumpTable{}, false

found:
	if lwzx == nil || rlwinm == nil || cmp == nil {
		return JumpTable{}, false
	}

	const stride = 4
	jt := JumpTable{
		Site:     bctrAddr,
		Stride:   stride,
		GuardReg: cmp.RA,
	}
	if cmp.Op == ppc.Cmpli {
		jt.Count = cmp.UImm + 1
	} else {
		jt.Count = uint32(cmp.Imm) + 1
	}

	// The table base is whatever constant the emitter will have
	// materialized into lwzx's RA; at analysis time that value isn't
	// tracked by this conservative heuristic, so callers that need the
	// base rely on an explicit switch_tables hint instead. Recovery
	// without a hint still yields count/stride/guard but no targets, so
	// the emitter renders a switch holding only its default arm.
	return jt, true
}

// tableTargets reads Count code pointers of Stride width starting at
// Base from the image, for hint-declared jump tables.
func tableTargets(img *Image, jt JumpTable) ([]uint32, bool) {
	targets := make([]uint32, 0, jt.Count)
	for i := uint32(0); i < jt.Count; i++ {
		addr := jt.Base + i*jt.Stride
		w, ok := img.ReadWord(addr)
		if !ok {
			return nil, false
		}
		targets = append(targets, uint32(w))
	}
	return targets, true
}
