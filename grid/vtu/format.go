// Package vtu reads and writes VTK XML unstructured grid (.vtu) files.
package vtu

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Format selects how DataArray contents are written
type Format int

const (
	ASCII Format = iota
	// Binary writes base64 encoded little endian data inline, each array
	// prefixed by a UInt64 byte count
	Binary
)

var formatNames = map[string]Format{
	"ascii":  ASCII,
	"binary": Binary,
}

func (f Format) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func ParseFormat(s string) (Format, error) {
	if f, ok := formatNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return ASCII, fmt.Errorf("unknown vtu format %q, want ascii or binary", s)
}

const (
	fileType       = "UnstructuredGrid"
	zlibCompressor = "vtkZLibDataCompressor"
	tetraType      = 10
)

// Array names inside <Points> and <Cells>
const (
	pointsName       = "Points"
	connectivityName = "connectivity"
	offsetsName      = "offsets"
	typesName        = "types"
)

type vtkFile struct {
	XMLName    xml.Name         `xml:"VTKFile"`
	Type       string           `xml:"type,attr"`
	Version    string           `xml:"version,attr,omitempty"`
	ByteOrder  string           `xml:"byte_order,attr,omitempty"`
	HeaderType string           `xml:"header_type,attr,omitempty"`
	Compressor string           `xml:"compressor,attr,omitempty"`
	Grid       unstructuredGrid `xml:"UnstructuredGrid"`
	Appended   *appendedData    `xml:"AppendedData"`
}

type unstructuredGrid struct {
	Pieces []piece `xml:"Piece"`
}

type piece struct {
	NumberOfPoints int     `xml:"NumberOfPoints,attr"`
	NumberOfCells  int     `xml:"NumberOfCells,attr"`
	PointData      dataSet `xml:"PointData"`
	CellData       dataSet `xml:"CellData"`
	Points         dataSet `xml:"Points"`
	Cells          dataSet `xml:"Cells"`
}

type dataSet struct {
	Scalars string      `xml:"Scalars,attr,omitempty"`
	Arrays  []dataArray `xml:"DataArray"`
}

func (ds *dataSet) find(name string) (da *dataArray, ok bool) {
	for i := range ds.Arrays {
		if ds.Arrays[i].Name == name {
			return &ds.Arrays[i], true
		}
	}
	return nil, false
}

type dataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr,omitempty"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr,omitempty"`
	Format             string `xml:"format,attr"`
	Offset             *int64 `xml:"offset,attr,omitempty"`
	Text               string `xml:",chardata"`
}

func (da *dataArray) components() int {
	if da.NumberOfComponents < 1 {
		return 1
	}
	return da.NumberOfComponents
}

type appendedData struct {
	Encoding string `xml:"encoding,attr"`
	Text     string `xml:",chardata"`
}

// typeSize is the width in bytes of each VTK scalar type
var typeSize = map[string]int{
	"Int8": 1, "UInt8": 1,
	"Int16": 2, "UInt16": 2,
	"Int32": 4, "UInt32": 4, "Float32": 4,
	"Int64": 8, "UInt64": 8, "Float64": 8,
}

func isIntegerType(t string) bool {
	return strings.HasPrefix(t, "Int") || strings.HasPrefix(t, "UInt")
}
