package vtu

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/notargets/meshconv/grid"
)

// Codec implements grid.Codec for .vtu files
type Codec struct {
	Format Format // Used when writing, any supported format is read
}

func New(format Format) *Codec {
	return &Codec{Format: format}
}

var _ grid.Codec = (*Codec)(nil)

// valuesPerLine for ascii arrays
const valuesPerLine = 6

type arrayWriter struct {
	format Format
}

func (aw arrayWriter) floats(typ, name string, ncomp int, vals []float64) dataArray {
	da := dataArray{Type: typ, Name: name, Format: aw.format.String()}
	if ncomp > 1 {
		da.NumberOfComponents = ncomp
	}
	integer := isIntegerType(typ)
	switch aw.format {
	case Binary:
		var (
			size = typeSize[typ]
			buf  = make([]byte, 8+size*len(vals))
		)
		binary.LittleEndian.PutUint64(buf, uint64(size*len(vals)))
		for i, v := range vals {
			p := buf[8+i*size:]
			switch typ {
			case "UInt8":
				p[0] = uint8(v)
			case "Int64":
				binary.LittleEndian.PutUint64(p, uint64(int64(v)))
			default:
				binary.LittleEndian.PutUint64(p, math.Float64bits(v))
			}
		}
		da.Text = base64.StdEncoding.EncodeToString(buf)
	default:
		var b []byte
		b = append(b, '\n')
		for i, v := range vals {
			if integer {
				b = strconv.AppendInt(b, int64(v), 10)
			} else {
				b = strconv.AppendFloat(b, v, 'g', -1, 64)
			}
			if (i+1)%valuesPerLine == 0 || i == len(vals)-1 {
				b = append(b, '\n')
			} else {
				b = append(b, ' ')
			}
		}
		da.Text = string(b)
	}
	return da
}

func (aw arrayWriter) ints(typ, name string, vals []int) dataArray {
	f := make([]float64, len(vals))
	for i, v := range vals {
		f[i] = float64(v)
	}
	return aw.floats(typ, name, 1, f)
}

func (aw arrayWriter) field(f grid.Field) dataArray {
	if f.Integer {
		return aw.floats("Int64", f.Name, 1, f.Values)
	}
	return aw.floats("Float64", f.Name, 1, f.Values)
}

// Encode writes g as a single piece
func (c *Codec) Encode(w io.Writer, g grid.Grid) (err error) {
	var (
		aw     = arrayWriter{format: c.Format}
		np, nc = g.NumPoints(), g.NumCells()
		coords = make([]float64, 0, 3*np)
		conn   []int
		offs   = make([]int, nc)
		types  = make([]int, nc)
	)
	for i := 0; i < np; i++ {
		p := g.Point(i)
		coords = append(coords, p[0], p[1], p[2])
	}
	for k := 0; k < nc; k++ {
		ct, pts := g.Cell(k)
		conn = append(conn, pts...)
		offs[k] = len(conn)
		types[k] = int(ct)
	}
	pc := piece{NumberOfPoints: np, NumberOfCells: nc}
	for _, f := range g.PointFields() {
		pc.PointData.Arrays = append(pc.PointData.Arrays, aw.field(f))
	}
	for _, f := range g.CellFields() {
		if pc.CellData.Scalars == "" && !f.Integer {
			pc.CellData.Scalars = f.Name
		}
		pc.CellData.Arrays = append(pc.CellData.Arrays, aw.field(f))
	}
	pc.Points.Arrays = []dataArray{aw.floats("Float64", pointsName, 3, coords)}
	pc.Cells.Arrays = []dataArray{
		aw.ints("Int64", connectivityName, conn),
		aw.ints("Int64", offsetsName, offs),
		aw.ints("UInt8", typesName, types),
	}
	doc := vtkFile{
		Type:       fileType,
		Version:    "1.0",
		ByteOrder:  "LittleEndian",
		HeaderType: "UInt64",
		Grid:       unstructuredGrid{Pieces: []piece{pc}},
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err = enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding vtu")
	}
	buf.WriteString("\n")
	_, err = w.Write(buf.Bytes())
	return
}
