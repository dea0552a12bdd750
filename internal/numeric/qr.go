package numeric

import "math"

// QR is a Householder QR factorization with column pivoting, A·P = Q·R.
//
// Matrices with fewer rows than columns are padded with zero rows, which
// leaves every least-squares solution unchanged.
type QR struct {
	rows, cols int
	origRows   int

	h      [][]float64 // Householder vectors on and below the diagonal
	r      [][]float64 // cols x cols upper triangle of R
	rdiag  []float64
	acnorm []float64 // column norms of the original matrix
	perm   []int     // column j of A·P is column perm[j] of A
	rank   int
}

// NewQR factors a (rows x cols, row major). The input is not modified.
func NewQR(a [][]float64) *QR {
	return factorQR(a, true)
}

// LeastSquares returns the minimum-norm solution of min ||A·x - b||.
func LeastSquares(a [][]float64, b []float64) ([]float64, error) {
	return NewQR(a).Solve(b)
}

func factorQR(a [][]float64, pivot bool) *QR {
	origRows := len(a)
	if origRows == 0 {
		panic("numeric: QR of an empty matrix")
	}
	cols := len(a[0])
	rows := origRows
	if rows < cols {
		rows = cols
	}

	h := make([][]float64, rows)
	for i := range h {
		h[i] = make([]float64, cols)
		if i < origRows {
			if len(a[i]) != cols {
				panic("numeric: QR rows have different lengths")
			}
			copy(h[i], a[i])
		}
	}

	q := &QR{
		rows:     rows,
		cols:     cols,
		origRows: origRows,
		h:        h,
		rdiag:    make([]float64, cols),
		acnorm:   make([]float64, cols),
		perm:     make([]int, cols),
	}

	wa := make([]float64, cols)
	for j := 0; j < cols; j++ {
		q.acnorm[j] = columnNorm(h, j, 0)
		q.rdiag[j] = q.acnorm[j]
		wa[j] = q.rdiag[j]
		q.perm[j] = j
	}

	for j := 0; j < cols; j++ {
		if pivot {
			kmax := j
			for k := j + 1; k < cols; k++ {
				if q.rdiag[k] > q.rdiag[kmax] {
					kmax = k
				}
			}
			if kmax != j {
				for i := 0; i < rows; i++ {
					h[i][j], h[i][kmax] = h[i][kmax], h[i][j]
				}
				q.rdiag[kmax] = q.rdiag[j]
				wa[kmax] = wa[j]
				q.perm[j], q.perm[kmax] = q.perm[kmax], q.perm[j]
			}
		}

		ajnorm := columnNorm(h, j, j)
		if ajnorm != 0 {
			if h[j][j] < 0 {
				ajnorm = -ajnorm
			}
			for i := j; i < rows; i++ {
				h[i][j] /= ajnorm
			}
			h[j][j]++

			for k := j + 1; k < cols; k++ {
				sum := 0.0
				for i := j; i < rows; i++ {
					sum += h[i][j] * h[i][k]
				}
				temp := sum / h[j][j]
				for i := j; i < rows; i++ {
					h[i][k] -= temp * h[i][j]
				}
				if pivot && q.rdiag[k] != 0 {
					temp = h[j][k] / q.rdiag[k]
					q.rdiag[k] *= math.Sqrt(math.Max(0, 1-temp*temp))
					if 0.05*(q.rdiag[k]/wa[k])*(q.rdiag[k]/wa[k]) <= Eps {
						q.rdiag[k] = columnNorm(h, k, j+1)
						wa[k] = q.rdiag[k]
					}
				}
			}
		}
		q.rdiag[j] = -ajnorm
	}

	q.r = make([][]float64, cols)
	for i := 0; i < cols; i++ {
		q.r[i] = make([]float64, cols)
		q.r[i][i] = q.rdiag[i]
		for k := i + 1; k < cols; k++ {
			q.r[i][k] = h[i][k]
		}
	}

	tol := 2 * float64(max(origRows, cols)) * Eps
	q.rank = cols
	for j := 0; j < cols; j++ {
		if math.Abs(q.rdiag[j]) <= tol*q.acnorm[q.perm[j]] || q.rdiag[j] == 0 {
			q.rank = j
			break
		}
	}
	return q
}

func columnNorm(a [][]float64, col, from int) float64 {
	s := 0.0
	for i := from; i < len(a); i++ {
		s = hypot(s, a[i][col])
	}
	return s
}

// Rank is the numerical rank found during factorization.
func (q *QR) Rank() int { return q.rank }

// Perm returns the column permutation P.
func (q *QR) Perm() []int { return append([]int(nil), q.perm...) }

// R returns a copy of the upper triangular factor.
func (q *QR) R() [][]float64 {
	out := make([][]float64, q.cols)
	for i := range out {
		out[i] = append([]float64(nil), q.r[i]...)
	}
	return out
}

func (q *QR) pad(b []float64) []float64 {
	if len(b) != q.origRows && len(b) != q.rows {
		panic("numeric: right-hand side length does not match QR rows")
	}
	out := make([]float64, q.rows)
	copy(out, b)
	return out
}

// QTMul returns Qᵀ·b.
func (q *QR) QTMul(b []float64) []float64 {
	out := q.pad(b)
	for j := 0; j < q.cols; j++ {
		q.reflect(j, out)
	}
	return out
}

// QMul returns Q·b.
func (q *QR) QMul(b []float64) []float64 {
	out := q.pad(b)
	for j := q.cols - 1; j >= 0; j-- {
		q.reflect(j, out)
	}
	return out
}

func (q *QR) reflect(j int, v []float64) {
	if q.h[j][j] == 0 {
		return
	}
	sum := 0.0
	for i := j; i < q.rows; i++ {
		sum += q.h[i][j] * v[i]
	}
	temp := -sum / q.h[j][j]
	for i := j; i < q.rows; i++ {
		v[i] += q.h[i][j] * temp
	}
}

// SolveR solves R·z = y by back substitution in the permuted variable
// space. Only the leading rank rows are used.
func (q *QR) SolveR(y []float64) ([]float64, error) {
	n := q.cols
	z := make([]float64, n)
	for k := n - 1; k >= 0; k-- {
		if q.r[k][k] == 0 {
			return nil, singular("QR.SolveR", 0)
		}
		sum := y[k]
		for i := k + 1; i < n; i++ {
			sum -= q.r[k][i] * z[i]
		}
		z[k] = sum / q.r[k][k]
	}
	return z, nil
}

// Solve returns the minimum-norm least-squares solution of A·x = b in the
// original variable order. Rank deficient systems are solved through a
// second QR factorization of the leading rank rows of R, transposed.
func (q *QR) Solve(b []float64) ([]float64, error) {
	qtb := q.QTMul(b)
	x := make([]float64, q.cols)
	if q.rank == 0 {
		return x, nil
	}

	var z []float64
	if q.rank == q.cols {
		var err error
		z, err = q.SolveR(qtb)
		if err != nil {
			return nil, err
		}
	} else {
		z = q.minNorm(qtb[:q.rank])
	}
	for j := 0; j < q.cols; j++ {
		x[q.perm[j]] = z[j]
	}
	return x, nil
}

// minNorm solves [R11 R12]·z = c for the z of least norm using the QR
// factorization of [R11 R12]ᵀ = W·T: z = W·T⁻ᵀ·c.
func (q *QR) minNorm(c []float64) []float64 {
	r := q.rank
	st := make([][]float64, q.cols)
	for i := 0; i < q.cols; i++ {
		st[i] = make([]float64, r)
		for k := 0; k < r; k++ {
			st[i][k] = q.r[k][i]
		}
	}
	w := factorQR(st, false)

	y := make([]float64, q.cols)
	for k := 0; k < r; k++ {
		sum := c[k]
		for i := 0; i < k; i++ {
			sum -= w.r[i][k] * y[i]
		}
		y[k] = sum / w.r[k][k]
	}
	return w.QMul(y)[:q.cols]
}

// SolveWithDiagonal solves the least-squares problem [A; D]·x = [b; 0]
// where D = diag(d) in the original variable order. The factorization of A
// is reused: D is folded into R by Givens rotations, so trying several
// damping diagonals costs O(cols²) each instead of a new factorization.
// A singular augmented system yields the least-squares solution with the
// trailing components set to zero.
func (q *QR) SolveWithDiagonal(b, d []float64) []float64 {
	n := q.cols
	if len(d) != n {
		panic("numeric: diagonal length does not match QR columns")
	}
	qtb := q.QTMul(b)

	r := make([][]float64, n)
	for i := range r {
		r[i] = append([]float64(nil), q.r[i]...)
	}
	wa := append([]float64(nil), qtb[:n]...)
	sdiag := make([]float64, n)
	xdiag := make([]float64, n)

	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			r[i][j] = r[j][i]
		}
		xdiag[j] = r[j][j]
	}

	for j := 0; j < n; j++ {
		if dj := d[q.perm[j]]; dj != 0 {
			for k := j; k < n; k++ {
				sdiag[k] = 0
			}
			sdiag[j] = dj

			qtbpj := 0.0
			for k := j; k < n; k++ {
				if sdiag[k] == 0 {
					continue
				}
				var sin, cos float64
				if math.Abs(r[k][k]) < math.Abs(sdiag[k]) {
					cotan := r[k][k] / sdiag[k]
					sin = 0.5 / math.Sqrt(0.25+0.25*cotan*cotan)
					cos = sin * cotan
				} else {
					tan := sdiag[k] / r[k][k]
					cos = 0.5 / math.Sqrt(0.25+0.25*tan*tan)
					sin = cos * tan
				}
				r[k][k] = cos*r[k][k] + sin*sdiag[k]
				temp := cos*wa[k] + sin*qtbpj
				qtbpj = -sin*wa[k] + cos*qtbpj
				wa[k] = temp

				for i := k + 1; i < n; i++ {
					temp = cos*r[i][k] + sin*sdiag[i]
					sdiag[i] = -sin*r[i][k] + cos*sdiag[i]
					r[i][k] = temp
				}
			}
		}
		sdiag[j] = r[j][j]
		r[j][j] = xdiag[j]
	}

	nsing := n
	for j := 0; j < n; j++ {
		if sdiag[j] == 0 && nsing == n {
			nsing = j
		}
		if nsing < n {
			wa[j] = 0
		}
	}
	for k := nsing - 1; k >= 0; k-- {
		sum := 0.0
		for i := k + 1; i < nsing; i++ {
			sum += r[i][k] * wa[i]
		}
		wa[k] = (wa[k] - sum) / sdiag[k]
	}

	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[q.perm[j]] = wa[j]
	}
	return x
}
