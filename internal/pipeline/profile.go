package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/datasift-cli/internal/analysis"
	"github.com/KaramelBytes/datasift-cli/internal/derive"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/schema"
)

// Profile names.
const (
	ProfileStudents = "students"
	ProfileGeneric  = "generic"
)

// Profile describes one dataset type: the fields it expects, how to derive extra columns,
// which columns become filter controls, and which summaries are shown.
type Profile struct {
	Name string
	// Fields are resolved against the raw headers. Empty means every column is kept
	// under its own name with its kind inferred.
	Fields []schema.Field
	// Keywords mark a first row as a header row. Empty disables headerless detection.
	Keywords []string
	// CategoryColumns and RangeColumns become multi-select and range controls.
	CategoryColumns []string
	RangeColumns    []string
	// DisplayColumns projects the filtered table; empty shows every column.
	DisplayColumns []string
	CountLabel     string
	Measures       []analysis.Measure
	Rules          []derive.Rule
	// AdjustDefault reshapes a data-derived range default, e.g. to a fixed scale.
	AdjustDefault map[string]func(filter.Bounds) filter.Bounds
	// BandColumn and GroupMean drive the profile's fixed charts.
	BandColumn string
	GroupMean  *GroupMeanChart
	ExportName string
}

// GroupMeanChart is a "mean of Metric by GroupBy, top N" bar chart.
type GroupMeanChart struct {
	GroupBy string
	Metric  string
	Top     int
}

// Students is the student-performance profile.
func Students(bands derive.BandTable) Profile {
	return Profile{
		Name:     ProfileStudents,
		Fields:   schema.StudentFields(),
		Keywords: schema.StudentKeywords(),
		CategoryColumns: []string{
			schema.University, schema.Campus, schema.School, schema.Program,
			schema.YearOfStudy, schema.Gender, schema.County,
		},
		RangeColumns: []string{schema.GPA, schema.Age},
		DisplayColumns: []string{
			derive.FullNameColumn, schema.University, schema.Campus, schema.School, schema.Program,
			schema.YearOfStudy, schema.Gender, schema.Age, schema.County, schema.AttendanceRate,
			schema.StudyHoursPerWeek, schema.GPA, schema.MentalWellbeingScore,
			schema.FinancialStressScore, schema.CreditsRegistered, derive.PerformanceBandColumn,
		},
		CountLabel: "Students",
		Measures: []analysis.Measure{
			{Label: "Avg GPA", Column: schema.GPA, Decimals: 2},
			{Label: "Avg Attendance", Column: schema.AttendanceRate, Decimals: 1, Suffix: "%"},
			{Label: "Avg Study Hours", Column: schema.StudyHoursPerWeek, Decimals: 1},
		},
		Rules: []derive.Rule{
			derive.FullNameRule(schema.FirstName, schema.LastName),
			derive.BandRule(schema.GPA, bands),
		},
		AdjustDefault: map[string]func(filter.Bounds) filter.Bounds{
			schema.GPA: func(b filter.Bounds) filter.Bounds { return filter.ClampBounds(b, 0, 4) },
			schema.Age: filter.IntegerBounds,
		},
		BandColumn: derive.PerformanceBandColumn,
		GroupMean:  &GroupMeanChart{GroupBy: schema.Program, Metric: schema.GPA, Top: 15},
		ExportName: "filtered_students.csv",
	}
}

// Generic accepts any table. Categorical columns become multi-select controls and numeric
// or temporal columns become range controls once the data is loaded.
func Generic() Profile {
	return Profile{
		Name:       ProfileGeneric,
		CountLabel: "Rows",
		ExportName: "filtered.csv",
	}
}

// Lookup returns the named profile.
func Lookup(name string, bands derive.BandTable) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileStudents:
		return Students(bands), nil
	case ProfileGeneric:
		return Generic(), nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q (want %s or %s)", name, ProfileStudents, ProfileGeneric)
}

// WithAliases applies alias overrides to the profile's fields.
func (p Profile) WithAliases(af *schema.AliasFile) Profile {
	if af == nil || len(p.Fields) == 0 {
		return p
	}
	p.Fields = af.Apply(p.Fields)
	return p
}
