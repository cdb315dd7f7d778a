package kfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/notargets/meshconv/materials"
	"github.com/notargets/meshconv/types"
)

// Padding selects what fills node slots 5-8 of a solid element card
type Padding int

const (
	// PadRepeatLast repeats the fourth node, the degenerate 8-node form
	PadRepeatLast Padding = iota
	// PadZero writes the four nodes followed by zeros
	PadZero
)

var paddingNames = map[string]Padding{
	"repeat-last": PadRepeatLast,
	"zero":        PadZero,
}

func (p Padding) String() string {
	for name, v := range paddingNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("Padding(%d)", int(p))
}

func ParsePadding(s string) (Padding, error) {
	if p, ok := paddingNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return PadRepeatLast, fmt.Errorf("unknown padding %q, want repeat-last or zero", s)
}

type WriterOptions struct {
	Offset  int // Added to every node, element, part, section and material id
	Padding Padding
}

// deck wraps the buffered output and keeps the first formatting error
type deck struct {
	bw  *bufio.Writer
	err error
}

func (d *deck) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.bw, format, args...)
}

func (d *deck) ints(width int, vals ...int) {
	for _, v := range vals {
		if d.err != nil {
			return
		}
		var s string
		if s, d.err = formatInt(v, width); d.err == nil {
			_, d.err = d.bw.WriteString(s)
		}
	}
}

func (d *deck) flush() error {
	if d.err != nil {
		return d.err
	}
	return d.bw.Flush()
}

// WriteMesh writes the nodes and solid elements of m. Element Part holds the
// material index of each element; node references are node ids.
func WriteMesh(w io.Writer, m *types.Mesh, opts WriterOptions) error {
	var (
		off = opts.Offset
		d   = &deck{bw: bufio.NewWriter(w)}
	)
	d.printf("*KEYWORD\n*NODE\n")
	for _, n := range m.Nodes {
		d.ints(IDWidth, n.ID+off)
		d.printf("%s%s%s", formatFloat(n.X, CoordWidth), formatFloat(n.Y, CoordWidth), formatFloat(n.Z, CoordWidth))
		d.ints(IDWidth, 0, 0)
		d.printf("\n")
	}
	d.printf("*ELEMENT_SOLID\n")
	for _, el := range m.Elements {
		d.ints(IDWidth, el.ID+off, el.Part+off)
		d.printf("\n")
		for _, nid := range el.Nodes {
			d.ints(IDWidth, nid+off)
		}
		fill := 0
		if opts.Padding == PadRepeatLast {
			fill = el.Nodes[types.TetNodes-1] + off
		}
		d.ints(IDWidth, fill, fill, fill, fill, 0, 0)
		d.printf("\n")
	}
	d.printf("*END")
	return d.flush()
}

// WriteMaterials writes a *PART, *SECTION_SOLID and *MAT_ELASTIC card for
// each part
func WriteMaterials(w io.Writer, parts []materials.Part, opts WriterOptions) error {
	d := &deck{bw: bufio.NewWriter(w)}
	for _, p := range parts {
		id := p.ID + opts.Offset
		d.printf("*PART\n")
		d.ints(CardWidth, id, id, id)
		d.printf("%*s%*s", CardWidth, "", CardWidth, "")
		d.ints(CardWidth, 0, 0)
		d.printf("\n*SECTION_SOLID\n")
		d.ints(CardWidth, id, p.SectionType)
		d.printf("\n*MAT_ELASTIC\n")
		d.ints(CardWidth, id)
		d.printf("%10.4E%10.4E%s", p.Density, p.Modulus, formatFloat(p.Poisson, CardWidth))
		d.ints(CardWidth, 0, 0, 0)
		d.printf("\n")
	}
	d.printf("*END")
	return d.flush()
}
