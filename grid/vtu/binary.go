package vtu

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// blockReader turns binary DataArray contents into raw bytes. A block is a
// header of UInt32 or UInt64 words followed by the data, which is either
// plain or split in zlib compressed chunks.
type blockReader struct {
	order      binary.ByteOrder
	headerSize int
	compressed bool
}

func (br *blockReader) word(buf []byte, i int) (uint64, error) {
	start := i * br.headerSize
	if start+br.headerSize > len(buf) {
		return 0, fmt.Errorf("block header truncated")
	}
	if br.headerSize == 4 {
		return uint64(br.order.Uint32(buf[start:])), nil
	}
	return br.order.Uint64(buf[start:]), nil
}

// unpack returns the data of the block at the start of buf
func (br *blockReader) unpack(buf []byte) (data []byte, err error) {
	var n uint64
	if !br.compressed {
		if n, err = br.word(buf, 0); err != nil {
			return
		}
		start := uint64(br.headerSize)
		if start+n > uint64(len(buf)) {
			return nil, fmt.Errorf("block of %d bytes overruns data (%d bytes left)", n, len(buf)-br.headerSize)
		}
		return buf[start : start+n], nil
	}
	var nBlocks, blockSize, lastSize uint64
	if nBlocks, err = br.word(buf, 0); err != nil {
		return
	}
	if blockSize, err = br.word(buf, 1); err != nil {
		return
	}
	if lastSize, err = br.word(buf, 2); err != nil {
		return
	}
	hdrLen := (3 + nBlocks) * uint64(br.headerSize)
	if hdrLen > uint64(len(buf)) {
		return nil, fmt.Errorf("compressed header of %d blocks overruns data", nBlocks)
	}
	pos := hdrLen
	for b := uint64(0); b < nBlocks; b++ {
		var cs uint64
		if cs, err = br.word(buf, int(3+b)); err != nil {
			return
		}
		if pos+cs > uint64(len(buf)) {
			return nil, fmt.Errorf("compressed block %d overruns data", b)
		}
		var (
			zr    io.ReadCloser
			chunk []byte
		)
		if zr, err = zlib.NewReader(bytes.NewReader(buf[pos : pos+cs])); err != nil {
			return nil, fmt.Errorf("block %d: %w", b, err)
		}
		chunk, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", b, err)
		}
		want := blockSize
		if b == nBlocks-1 && lastSize != 0 {
			want = lastSize
		}
		if uint64(len(chunk)) != want {
			return nil, fmt.Errorf("block %d inflates to %d bytes, header says %d", b, len(chunk), want)
		}
		data = append(data, chunk...)
		pos += cs
	}
	return
}

// decodeBase64 decodes a base64 block. Writers either encode the header and
// the data as one stream or as two separately padded streams; both are
// accepted.
func (br *blockReader) decodeBase64(text string) (buf []byte, err error) {
	text = strings.Join(strings.Fields(text), "")
	if buf, err = base64.StdEncoding.DecodeString(text); err == nil {
		return
	}
	enc := func(n int) int { return 4 * ((n + 2) / 3) }
	hdrChars := enc(br.headerSize)
	if br.compressed {
		// The first three words are always in the first 4*headerSize characters
		if len(text) < 4*br.headerSize {
			return nil, fmt.Errorf("base64 block too short")
		}
		var pre []byte
		if pre, err = base64.StdEncoding.DecodeString(text[:4*br.headerSize]); err != nil {
			return nil, err
		}
		var nBlocks uint64
		if nBlocks, err = br.word(pre, 0); err != nil {
			return
		}
		if nBlocks > uint64(len(text)) {
			return nil, fmt.Errorf("invalid block count %d", nBlocks)
		}
		hdrChars = enc((3 + int(nBlocks)) * br.headerSize)
	}
	if hdrChars > len(text) {
		return nil, fmt.Errorf("base64 block too short")
	}
	var hdr, data []byte
	if hdr, err = base64.StdEncoding.DecodeString(text[:hdrChars]); err != nil {
		return nil, err
	}
	if data, err = base64.StdEncoding.DecodeString(text[hdrChars:]); err != nil {
		return nil, err
	}
	return append(hdr, data...), nil
}

// toFloats converts packed values of a VTK scalar type
func toFloats(typ string, order binary.ByteOrder, data []byte) (vals []float64, err error) {
	size, ok := typeSize[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported data type %q", typ)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %s values", len(data), typ)
	}
	vals = make([]float64, len(data)/size)
	for i := range vals {
		p := data[i*size:]
		switch typ {
		case "Int8":
			vals[i] = float64(int8(p[0]))
		case "UInt8":
			vals[i] = float64(p[0])
		case "Int16":
			vals[i] = float64(int16(order.Uint16(p)))
		case "UInt16":
			vals[i] = float64(order.Uint16(p))
		case "Int32":
			vals[i] = float64(int32(order.Uint32(p)))
		case "UInt32":
			vals[i] = float64(order.Uint32(p))
		case "Float32":
			vals[i] = float64(math.Float32frombits(order.Uint32(p)))
		case "Int64":
			vals[i] = float64(int64(order.Uint64(p)))
		case "UInt64":
			vals[i] = float64(order.Uint64(p))
		case "Float64":
			vals[i] = math.Float64frombits(order.Uint64(p))
		}
	}
	return
}
