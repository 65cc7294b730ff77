package domain

// MovementRecord is one normalized admission from the raw CAGEDMOV microdata.
// It is produced by the converter, consumed by the aggregator, and never
// mutated afterwards. Demographic codes are already normalized onto the
// closed category sets; wage and age are parsed but not yet outlier-filtered,
// so the aggregator can count excluded rows explicitly.
type MovementRecord struct {
	Period       Period  `json:"period"`
	Municipality string  `json:"municipality"`   // 6-digit IBGE code, UF in the first two digits
	CNAESubclass string  `json:"cnae_subclass"`  // CNAE 2.0 subclass
	Occupation   string  `json:"occupation"`     // CBO 2002 code
	Education    string  `json:"education"`      // normalized education code
	Age          int     `json:"age"`
	Race         string  `json:"race"`           // normalized race code
	Gender       string  `json:"gender"`         // normalized gender code
	Wage         float64 `json:"wage"`           // monthly wage in BRL
	MovementType string  `json:"movement_type"`  // raw tipomovimentação value
	Disability   string  `json:"disability"`     // normalized disability code
}

// CategoryCode returns the record's normalized code on the given dimension.
func (m *MovementRecord) CategoryCode(d Dimension) string {
	switch d {
	case DimensionGender:
		return m.Gender
	case DimensionRace:
		return m.Race
	case DimensionEducation:
		return m.Education
	case DimensionDisability:
		return m.Disability
	}
	return CodeUnknown
}

// Region returns the macro-region derived from the municipality's UF prefix,
// or "NA" when the prefix is not a known UF code.
func (m *MovementRecord) Region() string {
	return RegionForMunicipality(m.Municipality)
}

// ufRegions maps the two-digit IBGE UF prefix to the macro-region used as a
// regression control.
var ufRegions = map[string]string{
	"11": "NORTE", "12": "NORTE", "13": "NORTE", "14": "NORTE",
	"15": "NORTE", "16": "NORTE", "17": "NORTE",
	"21": "NORDESTE", "22": "NORDESTE", "23": "NORDESTE", "24": "NORDESTE",
	"25": "NORDESTE", "26": "NORDESTE", "27": "NORDESTE", "28": "NORDESTE",
	"29": "NORDESTE",
	"31": "SUDESTE", "32": "SUDESTE", "33": "SUDESTE", "35": "SUDESTE",
	"41": "SUL", "42": "SUL", "43": "SUL",
	"50": "CENTRO-OESTE", "51": "CENTRO-OESTE", "52": "CENTRO-OESTE",
	"53": "CENTRO-OESTE",
}

// RegionForMunicipality maps a 6- or 7-digit IBGE municipality code to its
// macro-region, or "NA" for unrecognized codes.
func RegionForMunicipality(code string) string {
	if len(code) < 2 {
		return "NA"
	}
	if r, ok := ufRegions[code[:2]]; ok {
		return r
	}
	return "NA"
}

// Regions lists the macro-regions in a stable order, baseline first.
func Regions() []string {
	return []string{"SUDESTE", "NORTE", "NORDESTE", "SUL", "CENTRO-OESTE"}
}
