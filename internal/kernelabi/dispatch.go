package kernelabi

import "github.com/xenonrecomp/xenonrecomp/internal/dispatch"

// Exports is the name-keyed kernel-import dispatch table: the same
// "register once, look up by key thereafter" pattern virtualxt's
// CPU.InstallIODevice uses for its port table, generalized from a
// numeric port range to an import-name string since guest code resolves
// kernel thunks (`__imp__NtAllocateVirtualMemory`, ...) by name against
// the XEX import descriptor rather than by a fixed address.
var Exports = map[string]dispatch.GuestFunc{
	"NtAllocateVirtualMemory": NtAllocateVirtualMemory,
	"NtFreeVirtualMemory":     NtFreeVirtualMemory,
	"NtProtectVirtualMemory":  NtProtectVirtualMemory,
	"NtQueryVirtualMemory":    NtQueryVirtualMemory,

	"MmAllocatePhysicalMemory": MmAllocatePhysicalMemory,
	"MmFreePhysicalMemory":     MmFreePhysicalMemory,
	"MmQueryAddressProtect":    MmQueryAddressProtect,
	"MmQueryStatistics":        MmQueryStatistics,

	"KeGetImagePageTableEntry": KeGetImagePageTableEntry,

	"DbgPrint": DbgPrint,

	"vxNetSend": NetSend,
}

// Lookup resolves a guest import name to its host implementation,
// reporting ok=false for a name this recompiler does not implement.
func Lookup(name string) (dispatch.GuestFunc, bool) {
	fn, ok := Exports[name]
	return fn, ok
}
