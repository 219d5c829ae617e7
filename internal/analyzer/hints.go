// Package analyzer turns a loaded PowerPC image into a function graph
// suitable for emission: function discovery, basic-block CFG
// construction, jump-table recovery, and data-region detection. The
// worklist-driven discovery loop is grounded on virtualxt's
// `CPU.Step`/`execute` fetch-decode loop generalized from "execute one
// instruction now" to "enumerate every reachable instruction
// ahead of time".
package analyzer

import (
	"encoding/json"

	"github.com/spf13/afero"
)

// FunctionHint overrides or seeds function discovery for one address.
type FunctionHint struct {
	Size   uint32 `json:"size,omitempty"`
	End    uint32 `json:"end,omitempty"`
	Name   string `json:"name,omitempty"`
	Parent uint32 `json:"parent,omitempty"`
}

// SwitchTableHint declares a jump table the heuristic in jumptable.go
// might otherwise miss or misjudge.
type SwitchTableHint struct {
	Base   uint32 `json:"base"`
	Count  uint32 `json:"count"`
	Stride uint32 `json:"stride"`
}

// MidAsmHook names a host-side patch point inserted around a specific
// guest instruction.
type MidAsmHook struct {
	Name      string   `json:"name"`
	Registers []string `json:"registers,omitempty"`
	Ret       bool     `json:"ret,omitempty"`
	Jump      bool     `json:"jump,omitempty"`
}

// Hints is the JSON sidecar schema a caller may supply to seed or
// correct function discovery.
type Hints struct {
	Functions                 map[uint32]FunctionHint    `json:"functions,omitempty"`
	SwitchTables              map[uint32]SwitchTableHint `json:"switch_tables,omitempty"`
	MidAsmHooks               map[uint32]MidAsmHook      `json:"mid_asm_hooks,omitempty"`
	InvalidInstructionHints   map[uint32]uint32          `json:"invalid_instruction_hints,omitempty"`
	KnownIndirectCallHints    []uint32                   `json:"known_indirect_call_hints,omitempty"`
	ExceptionHandlerFuncHints []uint32                   `json:"exception_handler_func_hints,omitempty"`
	LongJmpAddress            uint32                     `json:"long_jmp_address,omitempty"`
	SetJmpAddress             uint32                     `json:"set_jmp_address,omitempty"`
}

// LoadHints reads and parses the hints sidecar through an afero.Fs, so
// callers can substitute afero.NewMemMapFs() in tests.
func LoadHints(fs afero.Fs, path string) (*Hints, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var h Hints
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// EmptyHints returns a zero-value Hints for images with no sidecar.
func EmptyHints() *Hints {
	return &Hints{
		Functions:               map[uint32]FunctionHint{},
		SwitchTables:            map[uint32]SwitchTableHint{},
		MidAsmHooks:             map[uint32]MidAsmHook{},
		InvalidInstructionHints: map[uint32]uint32{},
	}
}
