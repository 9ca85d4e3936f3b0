package types

import "fmt"

// Raster is a row-major 2-D grid. Samples are held as float32 in memory
// regardless of the persisted element type, which fits every 8 and 16 bit
// integer exactly.
type Raster struct {
	Rows int
	Cols int
	Type DataType
	Data []float32
}

// NewRaster allocates a zeroed grid.
func NewRaster(rows, cols int, dt DataType) *Raster {
	return &Raster{Rows: rows, Cols: cols, Type: dt, Data: make([]float32, rows*cols)}
}

// RasterFrom wraps existing samples. The slice is not copied.
func RasterFrom(rows, cols int, dt DataType, data []float32) (*Raster, error) {
	if rows*cols != len(data) {
		return nil, fmt.Errorf("raster %dx%d needs %d samples, got %d", rows, cols, rows*cols, len(data))
	}
	return &Raster{Rows: rows, Cols: cols, Type: dt, Data: data}, nil
}

// At returns the sample at row r, column c.
func (r *Raster) At(row, col int) float32 {
	return r.Data[row*r.Cols+col]
}

// Set writes the sample at row r, column c.
func (r *Raster) Set(row, col int, v float32) {
	r.Data[row*r.Cols+col] = v
}

// Len is the number of samples.
func (r *Raster) Len() int {
	return len(r.Data)
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Rows: r.Rows, Cols: r.Cols, Type: r.Type, Data: make([]float32, len(r.Data))}
	copy(out.Data, r.Data)
	return out
}

// Cast returns a copy converted to dt with the truncating conversion of the
// target type.
func (r *Raster) Cast(dt DataType) *Raster {
	out := &Raster{Rows: r.Rows, Cols: r.Cols, Type: dt, Data: make([]float32, len(r.Data))}
	for i, v := range r.Data {
		out.Data[i] = dt.Convert(v)
	}
	return out
}

// Window returns the top-left rows x cols sub-grid. Requests larger than the
// raster are clamped.
func (r *Raster) Window(rows, cols int) *Raster {
	if rows > r.Rows {
		rows = r.Rows
	}
	if cols > r.Cols {
		cols = r.Cols
	}
	out := NewRaster(rows, cols, r.Type)
	for y := 0; y < rows; y++ {
		copy(out.Data[y*cols:(y+1)*cols], r.Data[y*r.Cols:y*r.Cols+cols])
	}
	return out
}

// AllZero reports whether every sample is zero, the no-data marker of
// imported products.
func (r *Raster) AllZero() bool {
	for _, v := range r.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Max returns the largest sample, or 0 for an empty raster.
func (r *Raster) Max() float32 {
	if len(r.Data) == 0 {
		return 0
	}
	m := r.Data[0]
	for _, v := range r.Data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// SameExtent reports whether o has the same shape as r.
func (r *Raster) SameExtent(o *Raster) bool {
	return r.Rows == o.Rows && r.Cols == o.Cols
}

// Band is a raster instance of one channel at one resolution.
type Band struct {
	ID         BandID
	Resolution Resolution
	*Raster
}

func (b *Band) String() string {
	return fmt.Sprintf("%s@%s %dx%d %s", b.ID, b.Resolution, b.Rows, b.Cols, b.Type)
}
