package vtu

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshconv/grid"
	"github.com/notargets/meshconv/types"
)

var (
	testCoords = []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 1, 1,
	}
	testConn      = []int{0, 1, 2, 3, 1, 2, 3, 4}
	testOffsets   = []int{4, 8}
	testStiffness = []float64{1250.5, 17.25}
)

func testGrid(t *testing.T) *grid.Unstructured {
	g := grid.NewUnstructured()
	for i := 0; i < len(testCoords)/3; i++ {
		g.AddPoint(testCoords[3*i], testCoords[3*i+1], testCoords[3*i+2])
	}
	for k := range testOffsets {
		_, err := g.AddCell(grid.Tetra, testConn[4*k:4*k+4]...)
		require.NoError(t, err)
	}
	require.NoError(t, g.SetPointField(grid.NewIDField(grid.OriginalPointIDs, []int{101, 205, 310, 999, 4})))
	require.NoError(t, g.SetCellField(grid.NewIDField(grid.OriginalCellIDs, []int{11, 12})))
	require.NoError(t, g.SetCellField(grid.NewScalarField(grid.Stiffness, testStiffness)))
	return g
}

func checkGrid(t *testing.T, g grid.Grid, withIDs bool) {
	require.Equal(t, 5, g.NumPoints())
	require.Equal(t, 2, g.NumCells())
	for i := 0; i < 5; i++ {
		p := g.Point(i)
		for j := 0; j < 3; j++ {
			assert.InDelta(t, testCoords[3*i+j], p[j], 1e-7)
		}
	}
	for k := 0; k < 2; k++ {
		ct, pts := g.Cell(k)
		assert.Equal(t, grid.Tetra, ct)
		assert.Equal(t, testConn[4*k:4*k+4], pts)
	}
	e, ok := g.CellField(grid.Stiffness)
	require.True(t, ok)
	assert.Equal(t, testStiffness, e.Values)
	if withIDs {
		pid, ok := g.PointField(grid.OriginalPointIDs)
		require.True(t, ok)
		assert.True(t, pid.Integer)
		assert.Equal(t, []float64{101, 205, 310, 999, 4}, pid.Values)
		cid, ok := g.CellField(grid.OriginalCellIDs)
		require.True(t, ok)
		assert.Equal(t, []float64{11, 12}, cid.Values)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{ASCII, Binary} {
		var buf bytes.Buffer
		c := New(format)
		require.NoError(t, c.Encode(&buf, testGrid(t)))
		assert.Contains(t, buf.String(), fmt.Sprintf(`format="%s"`, format))
		assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))
		g, err := c.Decode(&buf)
		require.NoError(t, err, "format %s", format)
		checkGrid(t, g, true)
	}
	{ // A format written by one codec is read by any
		var buf bytes.Buffer
		require.NoError(t, New(Binary).Encode(&buf, testGrid(t)))
		g, err := New(ASCII).Decode(&buf)
		require.NoError(t, err)
		checkGrid(t, g, true)
	}
}

func TestFormatNames(t *testing.T) {
	f, err := ParseFormat(" Binary")
	require.NoError(t, err)
	assert.Equal(t, Binary, f)
	assert.Equal(t, "ascii", ASCII.String())
	_, err = ParseFormat("hdf5")
	assert.Error(t, err)
}

// Hand written in the style of simple exporters: version 0.1, Int32 arrays,
// no header type
const asciiDoc = `<?xml version="1.0"?>
<VTKFile type="UnstructuredGrid" version="0.1" byte_order="LittleEndian">
<UnstructuredGrid>
<Piece NumberOfPoints="5" NumberOfCells="2">
<Points>
<DataArray type="Float64" NumberOfComponents="3" format="ascii">
0 0 0  1 0 0  0 1 0
0 0 1  1 1 1
</DataArray>
</Points>
<Cells>
<DataArray type="Int32" Name="connectivity" format="ascii">0 1 2 3 1 2 3 4 </DataArray>
<DataArray type="Int32" Name="offsets" format="ascii">4 8 </DataArray>
<DataArray type="UInt8" Name="types" format="ascii">10 10 </DataArray>
</Cells>
<PointData Scalars="TheScalars">
<DataArray type="Float32" Name="velocity" NumberOfComponents="3" format="ascii">0 0 0 0 0 0 0 0 0 0 0 0 0 0 0</DataArray>
</PointData>
<CellData Scalars="E">
<DataArray type="Float64" Name="E" format="ascii">1250.5 17.25</DataArray>
</CellData>
</Piece>
</UnstructuredGrid>
</VTKFile>
`

func TestDecodeASCII(t *testing.T) {
	g, err := New(ASCII).Decode(strings.NewReader(asciiDoc))
	require.NoError(t, err)
	checkGrid(t, g, false)
	// Vector arrays are not scalar fields
	assert.Empty(t, g.PointFields())
}

func float64Bytes(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func float32Bytes(vals []float64) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	return buf
}

func int32Bytes(vals []int) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(int32(v)))
	}
	return buf
}

func uint8Bytes(vals ...int) []byte {
	buf := make([]byte, len(vals))
	for i, v := range vals {
		buf[i] = uint8(v)
	}
	return buf
}

// block builds a binary block the way VTK writes it and returns the header
// and the data parts separately
func block(t *testing.T, headerSize int, blockSize int, data []byte) (hdr, body []byte) {
	put := func(v int) {
		w := make([]byte, headerSize)
		if headerSize == 4 {
			binary.LittleEndian.PutUint32(w, uint32(v))
		} else {
			binary.LittleEndian.PutUint64(w, uint64(v))
		}
		hdr = append(hdr, w...)
	}
	if blockSize == 0 {
		put(len(data))
		return hdr, data
	}
	var chunks [][]byte
	for start := 0; start < len(data); start += blockSize {
		end := min(start+blockSize, len(data))
		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		_, err := zw.Write(data[start:end])
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		chunks = append(chunks, zb.Bytes())
	}
	put(len(chunks))
	put(blockSize)
	put(len(data) - (len(chunks)-1)*blockSize)
	for _, c := range chunks {
		put(len(c))
		body = append(body, c...)
	}
	return
}

type fixtureArray struct {
	section, typ, name string
	ncomp              int
	data               []byte
}

func testArrays() []fixtureArray {
	return []fixtureArray{
		{"CellData", "Float64", "E", 1, float64Bytes(testStiffness)},
		{"Points", "Float32", "Points", 3, float32Bytes(testCoords)},
		{"Cells", "Int32", "connectivity", 1, int32Bytes(testConn)},
		{"Cells", "Int32", "offsets", 1, int32Bytes(testOffsets)},
		{"Cells", "UInt8", "types", 1, uint8Bytes(10, 10)},
	}
}

// document lays out arrays in their sections; attrs gives the extra
// attributes of each DataArray
func document(headerType, compressor string, attrs []string, appended string) string {
	var (
		sb       strings.Builder
		sections = map[string][]string{}
	)
	for i, a := range testArrays() {
		line := fmt.Sprintf(`<DataArray type="%s" Name="%s" NumberOfComponents="%d" %s`, a.typ, a.name, a.ncomp, attrs[i])
		sections[a.section] = append(sections[a.section], line)
	}
	fmt.Fprintf(&sb, `<?xml version="1.0"?>
<VTKFile type="UnstructuredGrid" version="1.0" byte_order="LittleEndian" header_type="%s" compressor="%s">
  <UnstructuredGrid>
    <Piece NumberOfPoints="5" NumberOfCells="2">
`, headerType, compressor)
	for _, s := range []string{"CellData", "Points", "Cells"} {
		fmt.Fprintf(&sb, "      <%s>\n        %s\n      </%s>\n", s, strings.Join(sections[s], "\n        "), s)
	}
	sb.WriteString("    </Piece>\n  </UnstructuredGrid>\n")
	sb.WriteString(appended)
	sb.WriteString("</VTKFile>\n")
	return sb.String()
}

func TestDecodeInlineBinary(t *testing.T) {
	for _, tc := range []struct {
		headerType, compressor string
		headerSize, blockSize  int
		joint                  bool
	}{
		{"UInt32", "", 4, 0, true},
		{"UInt64", "", 8, 0, false},
		{"UInt32", zlibCompressor, 4, 16, false},
		{"UInt64", zlibCompressor, 8, 1 << 15, false},
		{"UInt64", zlibCompressor, 8, 7, true},
	} {
		var attrs []string
		for _, a := range testArrays() {
			hdr, body := block(t, tc.headerSize, tc.blockSize, a.data)
			var text string
			if tc.joint {
				text = base64.StdEncoding.EncodeToString(append(hdr, body...))
			} else {
				text = base64.StdEncoding.EncodeToString(hdr) + base64.StdEncoding.EncodeToString(body)
			}
			attrs = append(attrs, fmt.Sprintf(`format="binary">%s</DataArray>`, text))
		}
		doc := document(tc.headerType, tc.compressor, attrs, "")
		g, err := New(ASCII).Decode(strings.NewReader(doc))
		require.NoError(t, err, "%+v", tc)
		checkGrid(t, g, false)
	}
}

func TestDecodeAppended(t *testing.T) {
	for _, compressor := range []string{"", zlibCompressor} {
		blockSize := 0
		if compressor != "" {
			blockSize = 24
		}
		{ // Raw
			var (
				attrs []string
				blob  []byte
			)
			for _, a := range testArrays() {
				attrs = append(attrs, fmt.Sprintf(`format="appended" offset="%d"/>`, len(blob)))
				hdr, body := block(t, 8, blockSize, a.data)
				blob = append(blob, hdr...)
				blob = append(blob, body...)
			}
			appended := "  <AppendedData encoding=\"raw\">\n   _" + string(blob) + "\n  </AppendedData>\n"
			doc := document("UInt64", compressor, attrs, appended)
			g, err := New(ASCII).Decode(strings.NewReader(doc))
			require.NoError(t, err, "raw %q", compressor)
			checkGrid(t, g, false)
		}
		{ // Base64, each array encoded on its own
			var (
				attrs []string
				text  string
			)
			for _, a := range testArrays() {
				attrs = append(attrs, fmt.Sprintf(`format="appended" offset="%d"/>`, len(text)))
				hdr, body := block(t, 4, blockSize, a.data)
				text += base64.StdEncoding.EncodeToString(hdr) + base64.StdEncoding.EncodeToString(body)
			}
			appended := "  <AppendedData encoding=\"base64\">\n   _" + text + "\n  </AppendedData>\n"
			doc := document("UInt32", compressor, attrs, appended)
			g, err := New(ASCII).Decode(strings.NewReader(doc))
			require.NoError(t, err, "base64 %q", compressor)
			checkGrid(t, g, false)
		}
	}
}

func TestDecodeMultiplePieces(t *testing.T) {
	piece := `<Piece NumberOfPoints="4" NumberOfCells="1">
<CellData><DataArray type="Float64" Name="E" format="ascii">%v</DataArray></CellData>
<Points><DataArray type="Float64" NumberOfComponents="3" format="ascii">0 0 0 1 0 0 0 1 0 0 0 1</DataArray></Points>
<Cells>
<DataArray type="Int64" Name="connectivity" format="ascii">0 1 2 3</DataArray>
<DataArray type="Int64" Name="offsets" format="ascii">4</DataArray>
<DataArray type="UInt8" Name="types" format="ascii">10</DataArray>
</Cells>
</Piece>`
	doc := `<VTKFile type="UnstructuredGrid"><UnstructuredGrid>` +
		fmt.Sprintf(piece, 5) + fmt.Sprintf(piece, 7) +
		`</UnstructuredGrid></VTKFile>`
	g, err := New(ASCII).Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 8, g.NumPoints())
	_, pts := g.Cell(1)
	assert.Equal(t, []int{4, 5, 6, 7}, pts)
	e, ok := g.CellField("E")
	require.True(t, ok)
	assert.Equal(t, []float64{5, 7}, e.Values)
}

func TestDecodeErrors(t *testing.T) {
	check := func(doc, field string) {
		var fe *types.FormatError
		_, err := New(ASCII).Decode(strings.NewReader(doc))
		require.Error(t, err)
		require.True(t, errors.As(err, &fe), "%v", err)
		assert.Equal(t, field, fe.Field, "%v", err)
	}
	check("", "VTKFile")
	check("<VTKFile type=\"PolyData\"><PolyData/></VTKFile>", "type")
	check("<VTKFile type=\"UnstructuredGrid\"", "VTKFile")
	check("<VTKFile type=\"UnstructuredGrid\"><UnstructuredGrid/></VTKFile>", "Piece")
	check(strings.Replace(asciiDoc, `>10 10 </`, `>10 12 </`, 1), "types")
	check(strings.Replace(asciiDoc, `Name="offsets"`, `Name="offset"`, 1), "offsets")
	check(strings.Replace(asciiDoc, `1250.5 17.25`, `1250.5`, 1), "E")
	check(strings.Replace(asciiDoc, `1250.5 17.25`, `1250.5 x`, 1), "E")
	check(strings.Replace(asciiDoc, `version="0.1"`, `compressor="vtkLZ4DataCompressor"`, 1), "compressor")
	check(strings.Replace(asciiDoc, `version="0.1"`, `header_type="UInt16"`, 1), "header_type")
	check(strings.Replace(asciiDoc, `>4 8 </`, `>4 9 </`, 1), "offsets")
	check(strings.Replace(asciiDoc, `>0 1 2 3 1 2 3 4 </`, `>0 1 2 3 1 2 3 5 </`, 1), "connectivity")
	check(strings.Replace(asciiDoc, `format="ascii">1250.5`, `format="appended" offset="0">1250.5`, 1), "E")
}
