package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the element type a band is persisted with.
type DataType uint8

const (
	Uint8 DataType = iota + 1
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

func (d DataType) String() string {
	if n, ok := dataTypeNames[d]; ok {
		return n
	}
	return fmt.Sprintf("DataType(%d)", uint8(d))
}

// ParseDataType is the inverse of String.
func ParseDataType(s string) (DataType, error) {
	for d, n := range dataTypeNames {
		if n == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// Size returns the element width in bytes.
func (d DataType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// IsInteger reports whether values of d are truncated on conversion.
func (d DataType) IsInteger() bool {
	return d != Float32 && d != Float64
}

// Limits returns the representable range of d.
func (d DataType) Limits() (min, max float64) {
	switch d {
	case Uint8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return -math.MaxFloat64, math.MaxFloat64
}

// Convert clamps v into the range of d and truncates it toward zero for
// integer types.
func (d DataType) Convert(v float32) float32 {
	if !d.IsInteger() {
		return v
	}
	if v != v {
		return 0
	}
	lo, hi := d.Limits()
	f := float64(v)
	if f < lo {
		f = lo
	} else if f > hi {
		f = hi
	}
	return float32(math.Trunc(f))
}

// Encode packs values little-endian in the width of d.
func (d DataType) Encode(values []float32) []byte {
	size := d.Size()
	out := make([]byte, len(values)*size)
	for i, v := range values {
		off := i * size
		v = d.Convert(v)
		switch d {
		case Uint8:
			out[off] = uint8(v)
		case Int8:
			out[off] = byte(int8(v))
		case Uint16:
			binary.LittleEndian.PutUint16(out[off:], uint16(v))
		case Int16:
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		case Uint32:
			binary.LittleEndian.PutUint32(out[off:], uint32(v))
		case Int32:
			binary.LittleEndian.PutUint32(out[off:], uint32(int32(v)))
		case Float32:
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(v))
		case Float64:
			binary.LittleEndian.PutUint64(out[off:], math.Float64bits(float64(v)))
		}
	}
	return out
}

// Decode unpacks little-endian samples of type d.
func (d DataType) Decode(buf []byte) ([]float32, error) {
	size := d.Size()
	if size == 0 {
		return nil, fmt.Errorf("cannot decode %s", d)
	}
	if len(buf)%size != 0 {
		return nil, fmt.Errorf("buffer of %d bytes is not a multiple of %s width", len(buf), d)
	}
	out := make([]float32, len(buf)/size)
	for i := range out {
		off := i * size
		switch d {
		case Uint8:
			out[i] = float32(buf[off])
		case Int8:
			out[i] = float32(int8(buf[off]))
		case Uint16:
			out[i] = float32(binary.LittleEndian.Uint16(buf[off:]))
		case Int16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(buf[off:])))
		case Uint32:
			out[i] = float32(binary.LittleEndian.Uint32(buf[off:]))
		case Int32:
			out[i] = float32(int32(binary.LittleEndian.Uint32(buf[off:])))
		case Float32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		case Float64:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])))
		}
	}
	return out, nil
}
