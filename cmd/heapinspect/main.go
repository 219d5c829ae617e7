// Command heapinspect replays a recorded sequence of guest virtual
// memory operations against an internal/vmm.Manager and renders the
// resulting heap map, either as a one-shot query (-addr) for scripted
// use or as a scrollable tcell grid for interactive inspection. A
// second panel optionally summarizes a cmd/codegen translation run by
// reading back its internal/manifest output. The screen lifecycle
// (NewScreen/Init/PollEvent/Fini) is grounded on platform/tcell.go and
// platform/tcellevent.go's event loop, generalized from rendering a
// CGA text buffer to rendering heap region colors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/gdamore/tcell"
	"github.com/spf13/afero"

	"github.com/xenonrecomp/xenonrecomp/internal/manifest"
	"github.com/xenonrecomp/xenonrecomp/internal/vmm"
)

var (
	tracePath       string
	queryAddr       string
	manifestDir     string
	manifestProject string
)

func init() {
	flag.StringVar(&tracePath, "trace", "", "Path to a JSON allocation trace to replay (required)")
	flag.StringVar(&queryAddr, "addr", "", "Print the region info for one address and exit, instead of opening the interactive view")
	flag.StringVar(&manifestDir, "manifest-dir", "", "Output directory of a previous codegen run, for the function-graph summary panel")
	flag.StringVar(&manifestProject, "manifest-project", "", "Project name of a previous codegen run (used with -manifest-dir)")
}

// traceOp is one recorded vmm call. base/size are hex strings so
// the trace file reads the same way a hints sidecar does.
type traceOp struct {
	Op        string `json:"op"`
	Base      string `json:"base,omitempty"`
	Size      string `json:"size,omitempty"`
	PageSize  uint32 `json:"page_size,omitempty"`
	AllocType uint8  `json:"alloc_type,omitempty"`
	Protect   uint8  `json:"protect,omitempty"`
	TopDown   bool   `json:"top_down,omitempty"`
}

func parseHex32(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parse 0x value %q: %w", s, err)
	}
	return uint32(v), nil
}

func loadTrace(path string) ([]traceOp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	var ops []traceOp
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	return ops, nil
}

// replay applies every op in order, logging (not failing) on an
// individual op's error so one bad entry doesn't blank the whole
// inspection session.
func replay(mgr *vmm.Manager, ops []traceOp) {
	for i, op := range ops {
		base, err := parseHex32(op.Base)
		if err != nil {
			log.Printf("trace[%d]: %v", i, err)
			continue
		}
		size, err := parseHex32(op.Size)
		if err != nil {
			log.Printf("trace[%d]: %v", i, err)
			continue
		}

		switch op.Op {
		case "alloc_fixed":
			err = mgr.AllocFixed(base, size, vmm.PageSize(op.PageSize), vmm.AllocType(op.AllocType), vmm.Protect(op.Protect))
		case "alloc":
			_, err = mgr.Alloc(size, vmm.PageSize(op.PageSize), vmm.AllocType(op.AllocType), vmm.Protect(op.Protect), op.TopDown)
		case "protect":
			_, err = mgr.Protect(base, size, vmm.Protect(op.Protect))
		case "decommit":
			err = mgr.Decommit(base, size)
		case "release":
			_, err = mgr.Release(base)
		default:
			log.Printf("trace[%d]: unknown op %q", i, op.Op)
			continue
		}
		if err != nil {
			log.Printf("trace[%d] %s: %v", i, op.Op, err)
		}
	}
}

func main() {
	flag.Parse()
	if tracePath == "" {
		fmt.Fprintln(os.Stderr, "heapinspect: -trace is required")
		os.Exit(2)
	}

	ops, err := loadTrace(tracePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	mgr, err := vmm.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	replay(mgr, ops)

	if queryAddr != "" {
		addr, err := parseHex32(queryAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		info, err := mgr.QueryRegionInfo(addr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("base=0x%08X size=0x%X state=%d protect=%d allocation_base=0x%08X\n",
			info.Base, info.RegionSize, info.State, info.Protect, info.AllocationBase)
		return
	}

	var m *manifest.Manifest
	if manifestDir != "" && manifestProject != "" {
		m, err = manifest.Read(afero.NewOsFs(), manifestDir, manifestProject)
		if err != nil {
			log.Printf("heapinspect: read manifest: %v", err)
		}
	}

	runInteractive(mgr, m)
}

func runInteractive(mgr *vmm.Manager, m *manifest.Manifest) {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal(err)
	}
	if err := screen.Init(); err != nil {
		log.Fatal(err)
	}
	defer screen.Fini()

	screen.Clear()
	draw(screen, mgr, m)

	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return
			case tcell.KeyRune:
				if ev.Rune() == 'q' {
					return
				}
			}
			screen.Clear()
			draw(screen, mgr, m)
		case *tcell.EventResize:
			screen.Sync()
			draw(screen, mgr, m)
		}
	}
}

// regionStyle maps a heap region's allocation state to the block
// color the grid renders it with: free dark, reserved yellow,
// committed green, matching the teacher's cgaPalette-driven
// createStyleFromAttrib approach of deriving a tcell.Style from a
// small enum rather than a continuous color space.
func regionStyle(state vmm.State) tcell.Style {
	switch state {
	case vmm.StateCommitted:
		return tcell.StyleDefault.Background(tcell.ColorGreen).Foreground(tcell.ColorBlack)
	case vmm.StateReserved:
		return tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack)
	default:
		return tcell.StyleDefault.Background(tcell.ColorDefault).Foreground(tcell.ColorGray)
	}
}

// draw renders one row per heap, each row a fixed-width bar of cells
// proportional to how much of the heap a region occupies, followed by
// a function-graph summary panel when a manifest was loaded.
func draw(screen tcell.Screen, mgr *vmm.Manager, m *manifest.Manifest) {
	width, _ := screen.Size()
	barWidth := width - 20
	if barWidth < 10 {
		barWidth = 10
	}

	row := 0
	for _, sum := range mgr.Summarize() {
		label := fmt.Sprintf("%-14s", sum.Name)
		for i, r := range label {
			screen.SetContent(i, row, r, nil, tcell.StyleDefault)
		}

		for _, region := range sum.Regions {
			startCell := int(uint64(region.Base-sum.Base) * uint64(barWidth) / uint64(sum.Size))
			endCell := int(uint64(region.Base-sum.Base+region.RegionSize) * uint64(barWidth) / uint64(sum.Size))
			if endCell <= startCell {
				endCell = startCell + 1
			}
			style := regionStyle(region.State)
			for x := startCell; x < endCell && x < barWidth; x++ {
				screen.SetContent(len(label)+x, row, ' ', nil, style)
			}
		}
		row++
	}
	row++

	if m != nil {
		drawText(screen, 0, row, fmt.Sprintf("function graph: %s, %d functions across %d files", m.Project, m.FunctionCount, len(m.SourceFiles)))
		row++
		for _, f := range m.SourceFiles {
			drawText(screen, 2, row, f)
			row++
		}
		drawText(screen, 2, row, m.FuncTableFile+" (function table)")
		row++
	}

	drawText(screen, 0, row+1, "committed=green reserved=yellow free=default  (q/Esc to quit)")
	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, s string) {
	for i, r := range s {
		screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
