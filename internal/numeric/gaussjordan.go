package numeric

import "math"

// GaussJordan solves A·X = B in place by Gauss-Jordan elimination with full
// pivoting. On return a holds the inverse of A and b holds the solution X.
// b may be nil when only the inverse is wanted.
//
// include selects a sub-system: only rows and columns i with include[i] set
// take part in the elimination. Excluded rows and columns of a, and excluded
// rows of b, are zeroed. A nil include solves the whole system.
//
// The elimination stops with an error matching ErrSingular when the largest
// remaining pivot candidate, scaled by the largest magnitude of the original
// sub-matrix, falls below Eps. The check happens before the reciprocal, so a
// failed call never leaves NaN behind, but a and b are partially reduced.
func GaussJordan(a, b [][]float64, include []bool) error {
	n := len(a)
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if len(a[i]) != n {
			panic("numeric: GaussJordan needs a square matrix")
		}
		if include == nil || include[i] {
			idx = append(idx, i)
		}
	}
	if b != nil && len(b) != n {
		panic("numeric: GaussJordan right-hand side has wrong row count")
	}

	if include != nil {
		for i := 0; i < n; i++ {
			if include[i] {
				continue
			}
			for j := 0; j < n; j++ {
				a[i][j] = 0
				a[j][i] = 0
			}
			if b != nil {
				for k := range b[i] {
					b[i][k] = 0
				}
			}
		}
	}

	m := len(idx)
	if m == 0 {
		return nil
	}

	scale := 0.0
	for _, i := range idx {
		for _, j := range idx {
			scale = math.Max(scale, math.Abs(a[i][j]))
		}
	}
	if scale == 0 {
		return singular("GaussJordan", 0)
	}

	indxr := make([]int, m)
	indxc := make([]int, m)
	ipiv := make([]int, m)

	for step := 0; step < m; step++ {
		big := 0.0
		irow, icol := -1, -1
		for j := 0; j < m; j++ {
			if ipiv[j] == 1 {
				continue
			}
			for k := 0; k < m; k++ {
				if ipiv[k] != 0 {
					continue
				}
				if v := math.Abs(a[idx[j]][idx[k]]); v >= big {
					big = v
					irow, icol = j, k
				}
			}
		}
		if irow < 0 || big/scale < Eps {
			return singular("GaussJordan", big/scale)
		}
		ipiv[icol]++

		r, c := idx[irow], idx[icol]
		if irow != icol {
			a[r], a[c] = a[c], a[r]
			if b != nil {
				b[r], b[c] = b[c], b[r]
			}
		}
		indxr[step] = irow
		indxc[step] = icol

		pivinv := 1 / a[c][c]
		a[c][c] = 1
		for _, l := range idx {
			a[c][l] *= pivinv
		}
		if b != nil {
			for l := range b[c] {
				b[c][l] *= pivinv
			}
		}

		for _, ll := range idx {
			if ll == c {
				continue
			}
			dum := a[ll][c]
			if dum == 0 {
				continue
			}
			a[ll][c] = 0
			for _, l := range idx {
				a[ll][l] -= a[c][l] * dum
			}
			if b != nil {
				for l := range b[ll] {
					b[ll][l] -= b[c][l] * dum
				}
			}
		}
	}

	for l := m - 1; l >= 0; l-- {
		if indxr[l] == indxc[l] {
			continue
		}
		cr, cc := idx[indxr[l]], idx[indxc[l]]
		for _, k := range idx {
			a[k][cr], a[k][cc] = a[k][cc], a[k][cr]
		}
	}
	return nil
}
