package convert

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// column identifies one canonical microdata column.
type column string

const (
	colPeriod       column = "competenciamov"
	colMunicipality column = "municipio"
	colCNAE         column = "cnae20subclasse"
	colOccupation   column = "cbo2002ocupacao"
	colEducation    column = "graudeinstrucao"
	colAge          column = "idade"
	colRace         column = "racacor"
	colGender       column = "sexo"
	colWage         column = "salario"
	colMovementType column = "tipomovimentacao"

	// optional columns
	colBalance    column = "saldomovimentacao"
	colDisability column = "tipodedeficiencia"
)

// requiredColumns must all resolve for a file to be convertible.
var requiredColumns = []column{
	colPeriod, colMunicipality, colCNAE, colOccupation, colEducation,
	colAge, colRace, colGender, colWage, colMovementType,
}

// optionalColumns are used when present. The disability column only appears
// from mid-2021 extractions onward; the balance column varies by layout.
var optionalColumns = []column{colBalance, colDisability}

// columnAliases maps normalized header spellings seen across extractions to
// canonical columns. The ministry has shipped at least three spellings for
// several of these.
var columnAliases = map[string]column{
	"competenciamov":        colPeriod,
	"competenciamovimento":  colPeriod,
	"competencia":           colPeriod,
	"municipio":             colMunicipality,
	"codmunicipio":          colMunicipality,
	"cod_municipio":         colMunicipality,
	"cnae20subclasse":       colCNAE,
	"subclasse":             colCNAE,
	"cbo2002ocupacao":       colOccupation,
	"cbo":                   colOccupation,
	"graudeinstrucao":       colEducation,
	"grau_de_instrucao":     colEducation,
	"idade":                 colAge,
	"racacor":               colRace,
	"raca_cor":              colRace,
	"raca":                  colRace,
	"sexo":                  colGender,
	"salario":               colWage,
	"salariomensal":         colWage,
	"valorsalario":          colWage,
	"valor_salario":         colWage,
	"salariofixo":           colWage,
	"tipomovimentacao":      colMovementType,
	"tipo_movimentacao":     colMovementType,
	"saldomovimentacao":     colBalance,
	"tipodedeficiencia":     colDisability,
	"tipo_deficiencia":      colDisability,
	"tipodeficiencia":       colDisability,
	"deficiencia":           colDisability,
	"pcd":                   colDisability,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9_]+`)

// normalizeHeader lowercases, strips accents and drops anything that is not
// [a-z0-9_], so "competênciamov", "Competência Mov" and "competenciamov"
// all collide.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	return nonAlnum.ReplaceAllString(s, "")
}

// resolveColumns maps a raw header row to canonical column positions.
// It returns the index per canonical column and the list of required
// columns that could not be resolved.
func resolveColumns(header []string) (map[column]int, []column) {
	indexes := make(map[column]int)
	for i, raw := range header {
		if canon, ok := columnAliases[normalizeHeader(raw)]; ok {
			if _, seen := indexes[canon]; !seen {
				indexes[canon] = i
			}
		}
	}

	var missing []column
	for _, c := range requiredColumns {
		if _, ok := indexes[c]; !ok {
			missing = append(missing, c)
		}
	}
	return indexes, missing
}
