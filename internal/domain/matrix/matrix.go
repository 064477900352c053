// Package matrix provides the dense feature matrix shared by the shaping,
// scaling and scoring stages.
package matrix

import "fmt"

// Matrix is a dense row-major float64 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zero matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Row returns row i as a slice aliasing the matrix storage.
func (m Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns element (i, j).
func (m Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Column copies column j.
func (m Matrix) Column(j int) []float64 {
	out := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		out[i] = m.Data[i*m.Cols+j]
	}
	return out
}

// Slice returns rows [lo, hi) as a matrix aliasing the storage.
func (m Matrix) Slice(lo, hi int) Matrix {
	return Matrix{Rows: hi - lo, Cols: m.Cols, Data: m.Data[lo*m.Cols : hi*m.Cols]}
}

// VStack concatenates matrices row-wise. All inputs must share the column count.
func VStack(parts ...Matrix) (Matrix, error) {
	if len(parts) == 0 {
		return Matrix{}, nil
	}
	cols := parts[0].Cols
	rows := 0
	for _, p := range parts {
		if p.Cols != cols {
			return Matrix{}, fmt.Errorf("vstack: column count %d does not match %d", p.Cols, cols)
		}
		rows += p.Rows
	}
	out := Matrix{Rows: rows, Cols: cols, Data: make([]float64, 0, rows*cols)}
	for _, p := range parts {
		out.Data = append(out.Data, p.Data...)
	}
	return out, nil
}
