package vtu

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/meshconv/grid"
	"github.com/notargets/meshconv/types"
)

var encodingAttr = regexp.MustCompile(`encoding\s*=\s*"([^"]*)"`)

func formatError(field, format string, args ...any) error {
	return types.NewFormatError("", 0, field, format, args...)
}

// splitAppended cuts raw appended data out of the document, since it is not
// valid XML character data
func splitAppended(doc []byte) (xmlDoc, raw []byte, err error) {
	const endTag = "</AppendedData>"
	start := bytes.Index(doc, []byte("<AppendedData"))
	if start < 0 {
		return doc, nil, nil
	}
	tagEnd := bytes.IndexByte(doc[start:], '>')
	if tagEnd < 0 {
		return nil, nil, formatError("AppendedData", "unterminated tag")
	}
	tagEnd += start
	m := encodingAttr.FindSubmatch(doc[start:tagEnd])
	if m == nil || string(m[1]) != "raw" {
		return doc, nil, nil
	}
	if doc[tagEnd-1] == '/' {
		return nil, nil, formatError("AppendedData", "empty raw data")
	}
	end := bytes.LastIndex(doc, []byte(endTag))
	if end < tagEnd {
		return nil, nil, formatError("AppendedData", "missing %s", endTag)
	}
	under := bytes.IndexByte(doc[tagEnd:end], '_')
	if under < 0 {
		return nil, nil, formatError("AppendedData", "missing '_' marker")
	}
	raw = doc[tagEnd+under+1 : end]
	xmlDoc = make([]byte, 0, tagEnd+1+len(doc)-end)
	xmlDoc = append(xmlDoc, doc[:tagEnd+1]...)
	xmlDoc = append(xmlDoc, doc[end:]...)
	return
}

type decoder struct {
	blocks   blockReader
	appended []byte // Decoded from raw or kept as base64 text
	base64   bool
	offsets  []int64 // Sorted distinct offsets into appended data
}

func (d *decoder) values(da *dataArray) (vals []float64, err error) {
	switch strings.ToLower(da.Format) {
	case "ascii":
		fields := strings.Fields(da.Text)
		vals = make([]float64, len(fields))
		for i, f := range fields {
			if vals[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, formatError(da.Name, "invalid ascii value %q", f)
			}
		}
		return
	case "binary":
		var buf, data []byte
		if buf, err = d.blocks.decodeBase64(da.Text); err != nil {
			return nil, formatError(da.Name, "decoding base64: %v", err)
		}
		if data, err = d.blocks.unpack(buf); err != nil {
			return nil, formatError(da.Name, "%v", err)
		}
		return d.convert(da, data)
	case "appended":
		return d.appendedValues(da)
	}
	return nil, formatError(da.Name, "unsupported format %q", da.Format)
}

func (d *decoder) appendedValues(da *dataArray) (vals []float64, err error) {
	if d.appended == nil {
		return nil, formatError(da.Name, "appended array but no AppendedData section")
	}
	if da.Offset == nil || *da.Offset < 0 || *da.Offset > int64(len(d.appended)) {
		return nil, formatError(da.Name, "missing or invalid offset")
	}
	block := d.appended[*da.Offset:]
	if d.base64 {
		// Each array is encoded on its own, up to the next array's offset
		i := sort.Search(len(d.offsets), func(i int) bool { return d.offsets[i] > *da.Offset })
		if i < len(d.offsets) {
			block = d.appended[*da.Offset:d.offsets[i]]
		}
		if block, err = d.blocks.decodeBase64(string(block)); err != nil {
			return nil, formatError(da.Name, "decoding base64: %v", err)
		}
	}
	var data []byte
	if data, err = d.blocks.unpack(block); err != nil {
		return nil, formatError(da.Name, "%v", err)
	}
	return d.convert(da, data)
}

func (d *decoder) convert(da *dataArray, data []byte) (vals []float64, err error) {
	if vals, err = toFloats(da.Type, d.blocks.order, data); err != nil {
		return nil, formatError(da.Name, "%v", err)
	}
	return
}

// array reads a named array and checks it has n tuples
func (d *decoder) array(ds *dataSet, section, name string, n int) (vals []float64, err error) {
	da, ok := ds.find(name)
	if !ok {
		if name == pointsName && len(ds.Arrays) == 1 {
			// The points array does not have to be named
			da = &ds.Arrays[0]
		} else {
			return nil, formatError(name, "%s array not found", section)
		}
	}
	if vals, err = d.values(da); err != nil {
		return
	}
	if n >= 0 && len(vals) != n*da.components() {
		return nil, formatError(name, "have %d values, want %d", len(vals), n*da.components())
	}
	return
}

// Decode reads every piece of an unstructured grid file into one grid
func (c *Codec) Decode(r io.Reader) (g grid.Grid, err error) {
	var (
		doc, xmlDoc, raw []byte
		file             vtkFile
	)
	if doc, err = io.ReadAll(r); err != nil {
		return nil, errors.Wrap(err, "reading vtu")
	}
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, formatError("VTKFile", "empty input")
	}
	if xmlDoc, raw, err = splitAppended(doc); err != nil {
		return
	}
	if err = xml.Unmarshal(xmlDoc, &file); err != nil {
		return nil, formatError("VTKFile", "invalid xml: %v", err)
	}
	if file.Type != fileType {
		return nil, formatError("type", "file type is %q, want %q", file.Type, fileType)
	}
	d := &decoder{blocks: blockReader{order: binary.LittleEndian, headerSize: 4}}
	if file.ByteOrder == "BigEndian" {
		d.blocks.order = binary.BigEndian
	}
	switch file.HeaderType {
	case "", "UInt32":
	case "UInt64":
		d.blocks.headerSize = 8
	default:
		return nil, formatError("header_type", "unsupported header type %q", file.HeaderType)
	}
	switch file.Compressor {
	case "":
	case zlibCompressor:
		d.blocks.compressed = true
	default:
		return nil, formatError("compressor", "unsupported compressor %q", file.Compressor)
	}
	if raw != nil {
		d.appended = raw
	} else if file.Appended != nil {
		switch file.Appended.Encoding {
		case "base64":
			text := strings.TrimSpace(file.Appended.Text)
			d.appended, d.base64 = []byte(strings.TrimPrefix(text, "_")), true
		default:
			return nil, formatError("AppendedData", "unsupported encoding %q", file.Appended.Encoding)
		}
	}
	d.collectOffsets(&file)
	if len(file.Grid.Pieces) == 0 {
		return nil, formatError("Piece", "no pieces in file")
	}
	ug := grid.NewUnstructured()
	pointData := newFieldCollector()
	cellData := newFieldCollector()
	for i := range file.Grid.Pieces {
		if err = d.readPiece(ug, &file.Grid.Pieces[i], pointData, cellData); err != nil {
			return
		}
	}
	for _, f := range pointData.complete(ug.NumPoints()) {
		if err = ug.SetPointField(f); err != nil {
			return
		}
	}
	for _, f := range cellData.complete(ug.NumCells()) {
		if err = ug.SetCellField(f); err != nil {
			return
		}
	}
	return ug, nil
}

func (d *decoder) collectOffsets(file *vtkFile) {
	seen := make(map[int64]bool)
	for _, pc := range file.Grid.Pieces {
		for _, ds := range []dataSet{pc.PointData, pc.CellData, pc.Points, pc.Cells} {
			for _, da := range ds.Arrays {
				if da.Offset != nil && !seen[*da.Offset] {
					seen[*da.Offset] = true
					d.offsets = append(d.offsets, *da.Offset)
				}
			}
		}
	}
	sort.Slice(d.offsets, func(i, j int) bool { return d.offsets[i] < d.offsets[j] })
}

func (d *decoder) readPiece(ug *grid.Unstructured, pc *piece, pointData, cellData *fieldCollector) (err error) {
	var (
		coords, conn, offs, cellTypes []float64
		base                          = ug.NumPoints()
	)
	if coords, err = d.array(&pc.Points, "Points", pointsName, pc.NumberOfPoints); err != nil {
		return
	}
	if len(coords) != 3*pc.NumberOfPoints {
		return formatError(pointsName, "points must have 3 components")
	}
	if conn, err = d.array(&pc.Cells, "Cells", connectivityName, -1); err != nil {
		return
	}
	if offs, err = d.array(&pc.Cells, "Cells", offsetsName, pc.NumberOfCells); err != nil {
		return
	}
	if cellTypes, err = d.array(&pc.Cells, "Cells", typesName, pc.NumberOfCells); err != nil {
		return
	}
	for i := 0; i < pc.NumberOfPoints; i++ {
		ug.AddPoint(coords[3*i], coords[3*i+1], coords[3*i+2])
	}
	pts := make([]int, 0, 4)
	start := 0
	for k := 0; k < pc.NumberOfCells; k++ {
		end := int(offs[k])
		if end < start || end > len(conn) {
			return formatError(offsetsName, "cell %d has invalid offset %d", k, end)
		}
		if int(cellTypes[k]) != tetraType {
			return formatError(typesName, "cell %d has type %d, only tetrahedra (%d) are supported",
				k, int(cellTypes[k]), tetraType)
		}
		pts = pts[:0]
		for _, p := range conn[start:end] {
			pts = append(pts, base+int(p))
		}
		if _, err = ug.AddCell(grid.Tetra, pts...); err != nil {
			return formatError(connectivityName, "cell %d: %v", k, err)
		}
		start = end
	}
	for _, set := range []struct {
		ds  *dataSet
		fc  *fieldCollector
		n   int
		tag string
	}{
		{&pc.PointData, pointData, pc.NumberOfPoints, "PointData"},
		{&pc.CellData, cellData, pc.NumberOfCells, "CellData"},
	} {
		for i := range set.ds.Arrays {
			da := &set.ds.Arrays[i]
			if da.components() != 1 || da.Name == "" {
				continue
			}
			var vals []float64
			if vals, err = d.array(set.ds, set.tag, da.Name, set.n); err != nil {
				return
			}
			set.fc.add(da.Name, isIntegerType(da.Type), vals)
		}
	}
	return
}

// fieldCollector joins same named arrays across pieces
type fieldCollector struct {
	order  []string
	fields map[string]*grid.Field
}

func newFieldCollector() *fieldCollector {
	return &fieldCollector{fields: make(map[string]*grid.Field)}
}

func (fc *fieldCollector) add(name string, integer bool, vals []float64) {
	f, ok := fc.fields[name]
	if !ok {
		f = &grid.Field{Name: name, Integer: integer}
		fc.fields[name] = f
		fc.order = append(fc.order, name)
	}
	f.Values = append(f.Values, vals...)
}

// complete returns the fields present in every piece
func (fc *fieldCollector) complete(n int) (fields []grid.Field) {
	for _, name := range fc.order {
		if f := fc.fields[name]; len(f.Values) == n {
			fields = append(fields, *f)
		}
	}
	return
}
