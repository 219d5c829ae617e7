package analyzer

import "github.com/cockroachdb/errors"

// Diagnostic kinds, covering the analyzer's recoverable-error taxonomy.
const (
	KindUnknownOpcode        = "unknown_opcode"
	KindOverlappingFunctions = "overlapping_functions"
	KindMalformedJumpTable   = "malformed_jump_table"
	KindOversizeFunction     = "oversize_function"
	KindUnresolvedBranch     = "unresolved_branch_target"
)

// diagnostic wraps one analysis failure with its address and kind, so
// cmd/codegen can print "<kind> at 0x<addr>: <cause>" without
// re-parsing the message.
type diagnostic struct {
	kind string
	addr uint32
	err  error
}

func (d *diagnostic) Error() string {
	return errors.Wrapf(d.err, "%s at 0x%08X", d.kind, d.addr).Error()
}

func (d *diagnostic) Unwrap() error { return d.err }

func newDiagnostic(kind string, addr uint32, err error) error {
	return &diagnostic{kind: kind, addr: addr, err: err}
}

// Combine merges a slice of diagnostics into a single combinable error
// via cockroachdb/errors, the same pattern ascrivener-jam's pkg/block
// and pkg/statetransition packages use for multi-cause failures.
func Combine(diags []error) error {
	var combined error
	for _, d := range diags {
		combined = errors.CombineErrors(combined, d)
	}
	return combined
}
