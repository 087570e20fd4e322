package schema

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"gopkg.in/yaml.v3"
)

// Canonical field names of the student dataset.
const (
	FirstName            = "FirstName"
	LastName             = "LastName"
	University           = "University"
	Campus               = "Campus"
	School               = "School"
	Program              = "Program"
	YearOfStudy          = "YearOfStudy"
	Gender               = "Gender"
	Age                  = "Age"
	County               = "County"
	AttendanceRate       = "AttendanceRate"
	StudyHoursPerWeek    = "StudyHoursPerWeek"
	GPA                  = "GPA"
	MentalWellbeingScore = "MentalWellbeingScore"
	FinancialStressScore = "FinancialStressScore"
	CreditsRegistered    = "CreditsRegistered"
)

// StudentFields is the default alias table for the student dataset, in positional order.
func StudentFields() []Field {
	return []Field{
		{Name: FirstName, Aliases: []string{"First Name", "Given Name", "Forename", "FName"}, Required: true, Kind: dataset.Categorical},
		{Name: LastName, Aliases: []string{"Last Name", "Surname", "Family Name", "LName"}, Required: true, Kind: dataset.Categorical},
		{Name: University, Aliases: []string{"Institution", "Uni"}, Required: true, Kind: dataset.Categorical},
		{Name: Campus, Aliases: []string{"Campus Name", "Site"}, Required: true, Kind: dataset.Categorical},
		{Name: School, Aliases: []string{"Faculty", "School Name", "College"}, Required: true, Kind: dataset.Categorical},
		{Name: Program, Aliases: []string{"Programme", "Course", "Degree", "Program Name"}, Required: true, Kind: dataset.Categorical},
		{Name: YearOfStudy, Aliases: []string{"Year", "Study Year", "Year Of Study", "Level"}, Required: true, Kind: dataset.Categorical},
		{Name: Gender, Aliases: []string{"Sex"}, Required: true, Kind: dataset.Categorical},
		{Name: Age, Aliases: []string{"Age Years", "Student Age"}, Required: true, Kind: dataset.Numeric},
		{Name: County, Aliases: []string{"Home County", "Region", "District"}, Required: true, Kind: dataset.Categorical},
		{Name: AttendanceRate, Aliases: []string{"Attendance", "Attendance %", "Attendance Percent", "Attendance Rate"}, Required: true, Kind: dataset.Numeric},
		{Name: StudyHoursPerWeek, Aliases: []string{"Study Hours", "Weekly Study Hours", "Hours Studied", "Study Hours Per Week"}, Required: true, Kind: dataset.Numeric},
		{Name: GPA, Aliases: []string{"Grade Point Average", "CGPA", "Cumulative GPA", "GPA Score"}, Required: true, Kind: dataset.Numeric},
		{Name: MentalWellbeingScore, Aliases: []string{"Mental Wellbeing", "Wellbeing Score", "Wellbeing", "Mental Health Score"}, Required: true, Kind: dataset.Numeric},
		{Name: FinancialStressScore, Aliases: []string{"Financial Stress", "Stress Score", "Money Stress"}, Required: true, Kind: dataset.Numeric},
		{Name: CreditsRegistered, Aliases: []string{"Credits", "Registered Credits", "Credit Load", "Units"}, Required: true, Kind: dataset.Numeric},
	}
}

// StudentKeywords are header tokens that mark a first row as a header row.
func StudentKeywords() []string {
	return []string{
		"gpa", "university", "firstname", "lastname", "program", "attendance", "attendancerate",
		"campus", "school", "gender", "county", "credits", "creditsregistered",
	}
}

// Names returns the canonical names of fields in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// AliasFile is the on-disk format for alias overrides:
//
//	aliases:
//	  GPA: ["Grade Avg", "GPA (4.0)"]
//	optional: [County]
type AliasFile struct {
	Aliases  map[string][]string `yaml:"aliases"`
	Optional []string            `yaml:"optional"`
}

// LoadAliasFile reads alias overrides from a YAML file.
func LoadAliasFile(path string) (*AliasFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var af AliasFile
	if err := yaml.Unmarshal(b, &af); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}
	return &af, nil
}

// Apply returns a copy of fields where override aliases take priority over the defaults
// and fields listed as optional stop being required. Unknown field names are ignored.
func (af *AliasFile) Apply(fields []Field) []Field {
	out := make([]Field, len(fields))
	optional := map[string]bool{}
	if af != nil {
		for _, n := range af.Optional {
			optional[Normalize(n)] = true
		}
	}
	for i, f := range fields {
		f.Aliases = append([]string(nil), f.Aliases...)
		if af != nil {
			for name, extra := range af.Aliases {
				if Normalize(name) == Normalize(f.Name) {
					f.Aliases = append(append([]string(nil), extra...), f.Aliases...)
				}
			}
		}
		if optional[Normalize(f.Name)] {
			f.Required = false
		}
		out[i] = f
	}
	return out
}
