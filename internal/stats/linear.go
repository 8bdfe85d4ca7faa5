package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearModel is a fitted (weighted) linear regression with sandwich
// standard errors. With one cluster per observation the variance is the
// HC1 heteroskedasticity-robust estimator; with repeated cluster IDs it is
// the cluster-robust estimator of a GEE with independence working
// correlation.
type LinearModel struct {
	Names    []string
	Coef     []float64
	SE       []float64
	Z        []float64
	P        []float64
	ConfLow  []float64
	ConfHigh []float64

	Fitted    []float64
	Residuals []float64

	N        int
	Clusters int
}

// FitWLS fits a linear regression of y on the design with optional
// observation weights and cluster IDs. A nil weights slice means equal
// weights; a nil clusters slice treats every observation as its own
// cluster. Inference is z-based.
func FitWLS(d *Design, y, weights []float64, clusters []string) (*LinearModel, error) {
	n, k := d.N(), len(d.Names())
	if len(y) != n {
		return nil, fmt.Errorf("outcome has %d values, design has %d rows", len(y), n)
	}
	if k == 0 {
		return nil, errors.New("design has no columns")
	}
	if n <= k {
		return nil, fmt.Errorf("linear model needs more observations than parameters: n=%d, k=%d", n, k)
	}
	if weights != nil && len(weights) != n {
		return nil, fmt.Errorf("weights have %d values, design has %d rows", len(weights), n)
	}
	if clusters != nil && len(clusters) != n {
		return nil, fmt.Errorf("clusters have %d values, design has %d rows", len(clusters), n)
	}
	for i, v := range y {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("outcome row %d is missing", i)
		}
	}

	w := weights
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	for i, v := range w {
		if math.IsNaN(v) || v <= 0 {
			return nil, fmt.Errorf("weight row %d is %v, want positive", i, v)
		}
	}

	x := d.Matrix()
	beta, err := solveWeighted(x, y, w)
	if err != nil {
		return nil, err
	}

	model := &LinearModel{
		Names: append([]string(nil), d.Names()...),
		Coef:  beta,
		N:     n,
	}

	model.Fitted = make([]float64, n)
	model.Residuals = make([]float64, n)
	for i := 0; i < n; i++ {
		f := 0.0
		for j := 0; j < k; j++ {
			f += x.At(i, j) * beta[j]
		}
		model.Fitted[i] = f
		model.Residuals[i] = y[i] - f
	}

	cov, groups, err := sandwich(x, model.Residuals, w, clusters)
	if err != nil {
		return nil, err
	}
	model.Clusters = groups

	model.SE = make([]float64, k)
	model.Z = make([]float64, k)
	model.P = make([]float64, k)
	model.ConfLow = make([]float64, k)
	model.ConfHigh = make([]float64, k)

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	zCrit := norm.Quantile(0.975)
	for j := 0; j < k; j++ {
		se := math.Sqrt(cov.At(j, j))
		model.SE[j] = se
		if se > 0 {
			model.Z[j] = beta[j] / se
		}
		model.P[j] = 2 * norm.CDF(-math.Abs(model.Z[j]))
		model.ConfLow[j] = beta[j] - zCrit*se
		model.ConfHigh[j] = beta[j] + zCrit*se
	}

	return model, nil
}

// Lookup returns the coefficient row for a named term.
func (m *LinearModel) Lookup(name string) (int, bool) {
	for j, n := range m.Names {
		if n == name {
			return j, true
		}
	}
	return 0, false
}

// sandwich computes the cluster-robust covariance B M B with
// B = (XᵀWX)⁻¹ and M = Σ_g s_g s_gᵀ where s_g sums w_i e_i x_i within
// cluster g. The small-sample scale G/(G-1) · (n-1)/(n-k) reduces to the
// HC1 inflation n/(n-k) when every observation is its own cluster.
func sandwich(x *mat.Dense, resid, w []float64, clusters []string) (*mat.Dense, int, error) {
	n, k := x.Dims()

	xtwx := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += w[i] * x.At(i, a) * x.At(i, b)
			}
			xtwx.SetSym(a, b, s)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(xtwx); !ok {
		return nil, 0, errors.New("design matrix is singular; check for collinear covariates")
	}
	var bread mat.SymDense
	if err := chol.InverseTo(&bread); err != nil {
		return nil, 0, fmt.Errorf("failed to invert normal equations: %w", err)
	}

	scores := make(map[string][]float64)
	order := make([]string, 0)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("row-%d", i)
		if clusters != nil {
			id = clusters[i]
		}
		s, ok := scores[id]
		if !ok {
			s = make([]float64, k)
			scores[id] = s
			order = append(order, id)
		}
		for j := 0; j < k; j++ {
			s[j] += w[i] * resid[i] * x.At(i, j)
		}
	}

	groups := len(order)
	if groups <= 1 {
		return nil, 0, errors.New("robust variance needs more than one cluster")
	}

	meat := mat.NewDense(k, k, nil)
	for _, id := range order {
		s := scores[id]
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+s[a]*s[b])
			}
		}
	}

	scale := (float64(groups) / float64(groups-1)) * (float64(n-1) / float64(n-k))
	meat.Scale(scale, meat)

	cov := mat.NewDense(k, k, nil)
	cov.Product(&bread, meat, &bread)

	return cov, groups, nil
}
