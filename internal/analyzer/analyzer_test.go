package analyzer

import "testing"

func word32(op, a, b, c uint32) uint32 {
	return op<<26 | a<<21 | b<<16 | c
}

func bePut(buf []byte, off int, w uint32) {
	buf[off] = byte(w >> 24)
	buf[off+1] = byte(w >> 16)
	buf[off+2] = byte(w >> 8)
	buf[off+3] = byte(w)
}

func addiWord(rd, ra int, imm uint32) uint32 { return word32(14, uint32(rd), uint32(ra), imm&0xFFFF) }

func blrWord() uint32 { return word32(19, 20, 0, 16<<1) }

func bcctrWord() uint32 { return word32(19, 20, 0, 528<<1) }

func bWord(li uint32) uint32 { return word32(18, 0, 0, 0) | (li << 2) }

func newImage(base uint32, words []uint32) *Image {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		bePut(data, i*4, w)
	}
	return &Image{
		EntryPoint: base,
		Segments:   []Segment{{GuestBase: base, Data: data, Flags: SegExecute | SegRead}},
	}
}

func TestLoadStraightLineFunction(t *testing.T) {
	img := newImage(0x80001000, []uint32{
		addiWord(3, 0, 1),
		blrWord(),
	})
	graph, diags := Load(img, nil, DefaultOptions())
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(graph.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(graph.Functions))
	}
	fn := graph.Functions[0]
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(fn.Blocks))
	}
	if fn.Blocks[0].Terminator != TermReturn {
		t.Fatalf("expected return terminator, got %v", fn.Blocks[0].Terminator)
	}
}

func TestLoadFollowsUnconditionalBranch(t *testing.T) {
	// word0: b +8 (skip word1)
	// word1: addi r3,r0,0xDEAD  (never reached directly)
	// word2: blr
	img := newImage(0x80001000, []uint32{
		bWord(2), // displacement 2 words = 8 bytes
		addiWord(3, 0, 0xDEAD),
		blrWord(),
	})
	graph, diags := Load(img, nil, DefaultOptions())
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(graph.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(graph.Functions))
	}
	fn := graph.Functions[0]
	if len(fn.Blocks) != 2 {
		t.Fatalf("expected 2 blocks (branch + target), got %d", len(fn.Blocks))
	}
	if fn.BlockContaining(0x80001008) == nil {
		t.Fatal("expected a block at the branch target")
	}
}

func TestDataRegionThresholdEndsSweep(t *testing.T) {
	words := []uint32{addiWord(3, 0, 1), bWord(1)}
	for i := 0; i < 4; i++ {
		words = append(words, 1<<26) // primary opcode 1: unassigned, decodes as unknown
	}
	img := newImage(0x80001000, words)
	opts := DefaultOptions()
	opts.DataRegionThreshold = 2

	graph, _ := Load(img, nil, opts)
	if len(graph.DataRegions) == 0 {
		t.Fatal("expected a recorded data region once the undecodable run crossed the threshold")
	}
}

func TestExplicitHintEndOverridesInference(t *testing.T) {
	img := newImage(0x80001000, []uint32{
		addiWord(3, 0, 1),
		addiWord(4, 0, 2),
		blrWord(),
	})
	hints := EmptyHints()
	hints.Functions[0x80001000] = FunctionHint{Size: 4}

	graph, _ := Load(img, hints, DefaultOptions())
	fn := graph.ByEntry(0x80001000)
	if fn == nil {
		t.Fatal("expected a function at the entry")
	}
	if fn.Size != 4 {
		t.Fatalf("expected hint size 4 to win over inference, got %d", fn.Size)
	}
}

func TestOverlappingFunctionsProduceDiagnostic(t *testing.T) {
	img := newImage(0x80001000, []uint32{
		addiWord(3, 0, 1),
		blrWord(),
	})
	hints := EmptyHints()
	hints.Functions[0x80001000] = FunctionHint{Size: 8}
	hints.Functions[0x80001004] = FunctionHint{Size: 4}

	_, diags := Load(img, hints, DefaultOptions())
	if len(diags) == 0 {
		t.Fatal("expected an overlap diagnostic")
	}
}

func TestJumpTableHintRecoversTargets(t *testing.T) {
	// word0: addi          (base+0)
	// word1: bcctr         (base+4, indirect dispatch site)
	// word2: blr           (base+8,  case 0 target)
	// word3: blr           (base+12, case 1 target)
	// word4-7: padding, never reached
	// word8-9: the table itself, at base+0x20
	base := uint32(0x80001000)
	tableAddr := base + 0x20
	words := []uint32{
		addiWord(3, 0, 1),
		bcctrWord(),
		blrWord(),
		blrWord(),
		0, 0, 0, 0,
		base + 8,
		base + 12,
	}
	img := newImage(base, words)

	hints := EmptyHints()
	hints.SwitchTables[base+4] = SwitchTableHint{Base: tableAddr, Count: 2, Stride: 4}

	graph, _ := Load(img, hints, DefaultOptions())
	fn := graph.ByEntry(base)
	if fn == nil {
		t.Fatal("expected a function at the entry")
	}
	if len(fn.JumpTables) != 1 {
		t.Fatalf("expected 1 recovered jump table, got %d", len(fn.JumpTables))
	}
	if len(fn.JumpTables[0].Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(fn.JumpTables[0].Targets))
	}
	if fn.BlockContaining(base+8) == nil || fn.BlockContaining(base+12) == nil {
		t.Fatal("expected both recovered targets to have been swept into blocks")
	}
}
