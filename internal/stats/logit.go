package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	logitMaxIter = 25
	logitTol     = 1e-8

	// muFloor keeps fitted probabilities away from 0 and 1 so the working
	// weights stay finite under near-separation.
	muFloor = 1e-8
)

// LogitModel is a fitted binary logistic regression.
type LogitModel struct {
	Names      []string
	Coef       []float64
	Fitted     []float64
	Deviance   float64
	Iterations int
	Converged  bool
	N          int
}

// FitLogit fits a logistic regression of y on the design by iteratively
// reweighted least squares. The outcome must be coded 0/1 with no missing
// values; rows with undefined outcomes are the caller's to exclude.
func FitLogit(d *Design, y []float64) (*LogitModel, error) {
	n, k := d.N(), len(d.Names())
	if len(y) != n {
		return nil, fmt.Errorf("outcome has %d values, design has %d rows", len(y), n)
	}
	if n == 0 {
		return nil, errors.New("cannot fit logistic model on empty data")
	}
	if k == 0 {
		return nil, errors.New("design has no columns")
	}
	if n <= k {
		return nil, fmt.Errorf("logistic model needs more observations than parameters: n=%d, k=%d", n, k)
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("outcome row %d is %v, want 0 or 1", i, v)
		}
	}

	x := d.Matrix()
	beta := make([]float64, k)
	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	model := &LogitModel{
		Names: append([]string(nil), d.Names()...),
		N:     n,
	}

	devPrev := math.Inf(1)
	for iter := 1; iter <= logitMaxIter; iter++ {
		for i := 0; i < n; i++ {
			e := 0.0
			for j := 0; j < k; j++ {
				e += x.At(i, j) * beta[j]
			}
			eta[i] = e
			mu[i] = clampProbability(1 / (1 + math.Exp(-e)))
			w[i] = mu[i] * (1 - mu[i])
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}

		next, err := solveWeighted(x, z, w)
		if err != nil {
			return nil, fmt.Errorf("logistic model failed at iteration %d: %w", iter, err)
		}
		copy(beta, next)

		dev := 0.0
		for i := 0; i < n; i++ {
			e := 0.0
			for j := 0; j < k; j++ {
				e += x.At(i, j) * beta[j]
			}
			p := clampProbability(1 / (1 + math.Exp(-e)))
			if y[i] == 1 {
				dev -= 2 * math.Log(p)
			} else {
				dev -= 2 * math.Log(1-p)
			}
		}

		model.Iterations = iter
		model.Deviance = dev
		if math.Abs(dev-devPrev) < logitTol*(math.Abs(dev)+0.1) {
			model.Converged = true
			break
		}
		devPrev = dev
	}

	model.Coef = beta
	model.Fitted = make([]float64, n)
	for i := 0; i < n; i++ {
		e := 0.0
		for j := 0; j < k; j++ {
			e += x.At(i, j) * beta[j]
		}
		model.Fitted[i] = clampProbability(1 / (1 + math.Exp(-e)))
	}

	return model, nil
}

// DensityAt returns the fitted probability of the observed outcome for a
// row: P(Y=1|x) when the outcome is 1, P(Y=0|x) when it is 0.
func (m *LogitModel) DensityAt(row int, outcome float64) float64 {
	p := m.Fitted[row]
	if outcome == 1 {
		return p
	}
	return 1 - p
}

func clampProbability(p float64) float64 {
	if p < muFloor {
		return muFloor
	}
	if p > 1-muFloor {
		return 1 - muFloor
	}
	return p
}

// solveWeighted solves the weighted normal equations (XᵀWX)β = XᵀWz.
func solveWeighted(x *mat.Dense, z, w []float64) ([]float64, error) {
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

	xtwz := make([]float64, k)
	for a := 0; a < k; a++ {
		s := 0.0
		for i := 0; i < n; i++ {
			s += w[i] * x.At(i, a) * z[i]
		}
		xtwz[a] = s
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(xtwx); !ok {
		return nil, errors.New("design matrix is singular; check for collinear covariates")
	}

	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, mat.NewVecDense(k, xtwz)); err != nil {
		return nil, fmt.Errorf("failed to solve normal equations: %w", err)
	}

	out := make([]float64, k)
	for j := 0; j < k; j++ {
		out[j] = sol.AtVec(j)
	}
	return out, nil
}
