package analyzer

import "github.com/xenonrecomp/xenonrecomp/internal/ppc"

// SegmentFlags are the permission bits an image segment declares.
type SegmentFlags uint8

const (
	SegRead SegmentFlags = 1 << iota
	SegWrite
	SegExecute
)

// Segment is one loaded image section, already resident at its guest
// address (XEX/ELF parsing and image loading happen upstream of this
// package).
type Segment struct {
	GuestBase uint32
	Data      []byte
	Flags     SegmentFlags
}

func (s Segment) contains(addr uint32) bool {
	return addr >= s.GuestBase && addr < s.GuestBase+uint32(len(s.Data))
}

// Image is the analyzer's input: entry point plus the segment map.
type Image struct {
	EntryPoint uint32
	Segments   []Segment
}

func (img *Image) segmentFor(addr uint32) *Segment {
	for i := range img.Segments {
		if img.Segments[i].contains(addr) {
			return &img.Segments[i]
		}
	}
	return nil
}

// Executable reports whether addr lies in an executable segment.
func (img *Image) Executable(addr uint32) bool {
	s := img.segmentFor(addr)
	return s != nil && s.Flags&SegExecute != 0
}

// ReadWord fetches the big-endian 32-bit instruction word at addr.
func (img *Image) ReadWord(addr uint32) (ppc.Word, bool) {
	s := img.segmentFor(addr)
	if s == nil || addr+4 > s.GuestBase+uint32(len(s.Data)) {
		return 0, false
	}
	off := addr - s.GuestBase
	b := s.Data[off : off+4]
	return ppc.Word(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), true
}
