package domain

import "fmt"

// Dimension is one of the demographic axes the pipeline aggregates and
// models independently. There is deliberately no cross-product dimension.
type Dimension string

const (
	DimensionGender     Dimension = "gender"
	DimensionRace       Dimension = "race"
	DimensionEducation  Dimension = "education"
	DimensionDisability Dimension = "disability"
)

// Dimensions lists all axes in pipeline order.
func Dimensions() []Dimension {
	return []Dimension{DimensionGender, DimensionRace, DimensionEducation, DimensionDisability}
}

// ParseDimension validates a dimension name coming from CLI flags or query
// parameters.
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case DimensionGender, DimensionRace, DimensionEducation, DimensionDisability:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// CodeUnknown is the explicit category most dimensions map unrecognized or
// absent raw codes to, following the layout's own "não identificado"
// convention. Education uses "99" because the layout assigns 9 to mestrado.
// Rows are never dropped for an out-of-domain code, so admission counts stay
// comparable across months; the share of unknowns is tracked in the quality
// report instead.
const CodeUnknown = "9"

// UnknownCode returns the dimension's explicit unknown category code.
func (d Dimension) UnknownCode() string {
	if d == DimensionEducation {
		return "99"
	}
	return CodeUnknown
}

// Category is one level of a demographic dimension, identified by the raw
// CAGED layout code.
type Category struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Categories returns the closed category set for a dimension, in layout
// order. The first entry is the regression baseline level.
func (d Dimension) Categories() []Category {
	switch d {
	case DimensionGender:
		return []Category{
			{Code: "1", Name: "Masculino"},
			{Code: "3", Name: "Feminino"},
			{Code: CodeUnknown, Name: "Não identificado"},
		}
	case DimensionRace:
		return []Category{
			{Code: "1", Name: "Branca"},
			{Code: "2", Name: "Preta"},
			{Code: "3", Name: "Parda"},
			{Code: "4", Name: "Amarela"},
			{Code: "5", Name: "Indígena"},
			{Code: "6", Name: "Não informada"},
			{Code: CodeUnknown, Name: "Não identificado"},
		}
	case DimensionEducation:
		return []Category{
			{Code: "1", Name: "Analfabeto"},
			{Code: "2", Name: "Fundamental incompleto"},
			{Code: "3", Name: "Fundamental completo"},
			{Code: "4", Name: "Médio incompleto"},
			{Code: "5", Name: "Médio completo"},
			{Code: "6", Name: "Superior incompleto"},
			{Code: "7", Name: "Superior completo"},
			{Code: "8", Name: "Pós-graduação"},
			{Code: "9", Name: "Mestrado"},
			{Code: "10", Name: "Doutorado"},
			{Code: "11", Name: "Pós-doutorado"},
			{Code: "99", Name: "Não identificado"},
		}
	case DimensionDisability:
		return []Category{
			{Code: "0", Name: "Não deficiente"},
			{Code: "1", Name: "Física"},
			{Code: "2", Name: "Auditiva"},
			{Code: "3", Name: "Visual"},
			{Code: "4", Name: "Intelectual"},
			{Code: "5", Name: "Múltipla"},
			{Code: "6", Name: "Reabilitado"},
			{Code: CodeUnknown, Name: "Não identificado"},
		}
	}
	return nil
}

// Normalize maps a raw layout code onto the dimension's closed category set.
// Anything outside the set, including empty input, becomes the explicit
// unknown category.
func (d Dimension) Normalize(code string) string {
	for _, c := range d.Categories() {
		if c.Code == code {
			return code
		}
	}
	return d.UnknownCode()
}

// CategoryName resolves a normalized code to its display name.
func (d Dimension) CategoryName(code string) string {
	for _, c := range d.Categories() {
		if c.Code == code {
			return c.Name
		}
	}
	return "Não identificado"
}

// Baseline returns the regression baseline level for the dimension.
func (d Dimension) Baseline() string {
	cats := d.Categories()
	if len(cats) == 0 {
		return ""
	}
	return cats[0].Code
}
