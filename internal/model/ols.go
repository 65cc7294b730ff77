package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"cagedcli/pkg/contracts/domain"
)

// olsSpec fixes the design of the cross-sectional wage regression: dummy
// levels are the non-baseline values actually observed, so a sparse month
// never produces an all-zero column and a singular normal matrix.
type olsSpec struct {
	dim        domain.Dimension
	categories []string // non-baseline dimension levels, layout order
	educations []string // non-baseline education levels, layout order
	regions    []string // non-baseline macro-regions, stable order
}

func buildOLSSpec(dim domain.Dimension, groups []domain.RegressionGroup) olsSpec {
	catSeen := make(map[string]bool)
	eduSeen := make(map[string]bool)
	regSeen := make(map[string]bool)
	for i := range groups {
		catSeen[groups[i].Category] = true
		eduSeen[groups[i].Education] = true
		regSeen[groups[i].Region] = true
	}

	spec := olsSpec{dim: dim}
	for _, c := range dim.Categories() {
		if c.Code != dim.Baseline() && catSeen[c.Code] {
			spec.categories = append(spec.categories, c.Code)
		}
	}
	edu := domain.DimensionEducation
	for _, c := range edu.Categories() {
		if c.Code != edu.Baseline() && eduSeen[c.Code] {
			spec.educations = append(spec.educations, c.Code)
		}
	}
	for _, r := range domain.Regions() {
		if r != domain.Regions()[0] && regSeen[r] {
			spec.regions = append(spec.regions, r)
		}
	}
	// Municipalities outside the IBGE table land in the NA region.
	if regSeen["NA"] {
		spec.regions = append(spec.regions, "NA")
	}
	return spec
}

// terms lists the coefficient names in design-matrix column order, intercept
// first. Education controls are skipped when the dimension itself is
// education, which would otherwise duplicate every column.
func (s *olsSpec) terms() []string {
	names := []string{"intercept"}
	for _, c := range s.categories {
		names = append(names, fmt.Sprintf("%s_%s", s.dim, c))
	}
	if s.dim != domain.DimensionEducation {
		for _, e := range s.educations {
			names = append(names, "education_"+e)
		}
	}
	for _, r := range s.regions {
		names = append(names, "region_"+r)
	}
	names = append(names, "mean_age")
	return names
}

// row fills one design-matrix row for a group cell.
func (s *olsSpec) row(g *domain.RegressionGroup, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	dst[0] = 1
	col := 1
	for _, c := range s.categories {
		if g.Category == c {
			dst[col] = 1
		}
		col++
	}
	if s.dim != domain.DimensionEducation {
		for _, e := range s.educations {
			if g.Education == e {
				dst[col] = 1
			}
			col++
		}
	}
	for _, r := range s.regions {
		if g.Region == r {
			dst[col] = 1
		}
		col++
	}
	dst[col] = g.AgeSum / float64(g.Admissions)
}

// FitRegression estimates the wage gap model for one dimension on pooled
// group cells: log mean wage regressed on the dimension's categories with
// education, macro-region and mean age controls, each cell weighted by its
// admission count. Returns ErrInsufficientData when there are fewer cells
// than coefficients or the design is rank deficient.
func FitRegression(dim domain.Dimension, groups []domain.RegressionGroup, alpha float64) (*domain.RegressionArtifact, error) {
	spec := buildOLSSpec(dim, groups)
	names := spec.terms()
	k := len(names)

	var usable []*domain.RegressionGroup
	for i := range groups {
		if _, ok := groups[i].MeanWage(); ok {
			usable = append(usable, &groups[i])
		}
	}
	n := len(usable)
	if n <= k {
		return nil, fmt.Errorf("%w: %d cells for %d coefficients", ErrInsufficientData, n, k)
	}

	// Weighted least squares: scale every row and response by sqrt(weight)
	// so the unweighted normal equations solve the weighted problem.
	X := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	rowBuf := make([]float64, k)
	sumW := 0.0
	sumWY := 0.0
	for i, g := range usable {
		w := math.Sqrt(float64(g.Admissions))
		spec.row(g, rowBuf)
		for j, v := range rowBuf {
			X.Set(i, j, v*w)
		}
		mean, _ := g.MeanWage()
		ly := math.Log(mean)
		y.SetVec(i, ly*w)
		sumW += float64(g.Admissions)
		sumWY += float64(g.Admissions) * ly
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, fmt.Errorf("%w: rank-deficient design", ErrInsufficientData)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	// Residual variance and coefficient covariance from the same Cholesky
	// factor: Var(beta) = sigma2 * (X'X)^-1.
	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		rss += r * r
	}
	dof := n - k
	sigma2 := rss / float64(dof)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	// Weighted total sum of squares around the weighted mean.
	wmean := sumWY / sumW
	tss := 0.0
	for _, g := range usable {
		mean, _ := g.MeanWage()
		d := math.Log(mean) - wmean
		tss += float64(g.Admissions) * d * d
	}
	r2 := 0.0
	if tss > 0 {
		r2 = 1 - rss/tss
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	tCrit := tDist.Quantile(1 - alpha/2)

	art := &domain.RegressionArtifact{
		Dimension: dim,
		Status:    domain.StatusOK,
		Baseline:  dim.Baseline(),
		N:         n,
		RSquared:  r2,
	}
	for j, name := range names {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * inv.At(j, j))
		term := domain.RegressionTerm{Name: name, Estimate: est, StdErr: se}
		if se > 0 {
			term.TValue = est / se
			term.PValue = 2 * tDist.CDF(-math.Abs(term.TValue))
		}
		term.CILow = est - tCrit*se
		term.CIHigh = est + tCrit*se
		art.Terms = append(art.Terms, term)
	}
	return art, nil
}
