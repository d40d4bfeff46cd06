package domain

import (
	"sort"
	"strings"
)

// DepartmentGeneral disables department filtering
const DepartmentGeneral = "general"

// KeywordPenalty is applied to results kept only through a keyword match
const KeywordPenalty = 0.8

// Department describes which policy categories and keywords are relevant
// to an organisational unit.
type Department struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
}

// HasCategory reports whether category belongs to the department.
func (d Department) HasCategory(category string) bool {
	for _, c := range d.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// MatchesText reports whether any department keyword occurs in text.
// text must already be lowercased.
func (d Department) MatchesText(text string) bool {
	for _, kw := range d.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var departments = map[string]Department{
	"rrhh": {
		Name:       "rrhh",
		Categories: []string{"beneficios", "vacaciones", "desarrollo", "diversidad", "compensacion", "etica"},
		Keywords:   []string{"empleado", "personal", "contratación", "beneficio", "salario", "vacaciones"},
	},
	"it": {
		Name:       "it",
		Categories: []string{"trabajo_remoto", "desarrollo", "innovacion", "tecnologia"},
		Keywords:   []string{"tecnología", "sistema", "software", "desarrollo", "código"},
	},
	"legal": {
		Name:       "legal",
		Categories: []string{"etica", "cumplimiento", "politicas", "contratos"},
		Keywords:   []string{"legal", "contrato", "cumplimiento", "regulación", "ley"},
	},
	"finanzas": {
		Name:       "finanzas",
		Categories: []string{"compensacion", "beneficios", "presupuesto"},
		Keywords:   []string{"financiero", "presupuesto", "costo", "inversión", "gasto"},
	},
	"marketing": {
		Name:       "marketing",
		Categories: []string{"comunicacion", "branding", "eventos"},
		Keywords:   []string{"marketing", "publicidad", "campaña", "marca", "cliente"},
	},
	"ventas": {
		Name:       "ventas",
		Categories: []string{"incentivos", "comisiones", "objetivos"},
		Keywords:   []string{"venta", "cliente", "objetivo", "comisión", "meta"},
	},
	"operaciones": {
		Name:       "operaciones",
		Categories: []string{"procesos", "calidad", "eficiencia"},
		Keywords:   []string{"proceso", "operación", "calidad", "eficiencia", "producción"},
	},
	DepartmentGeneral: {
		Name: DepartmentGeneral,
	},
}

// LookupDepartment returns the department with the given name.
// Names are matched case-insensitively.
func LookupDepartment(name string) (Department, bool) {
	d, ok := departments[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// IsGeneralDepartment reports whether name disables filtering.
func IsGeneralDepartment(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	return name == "" || name == DepartmentGeneral
}

// DepartmentNames returns all known department names in sorted order.
func DepartmentNames() []string {
	names := make([]string, 0, len(departments))
	for name := range departments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
