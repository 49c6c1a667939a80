package catalog

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Institution is the reported programme statistics of one institution.
type Institution struct {
	Name               string  `yaml:"name" json:"name"`
	Programs           float64 `yaml:"programs" json:"programs"`
	UGCFollowed        string  `yaml:"ugc_followed" json:"ugc_followed"`
	UGPrograms         float64 `yaml:"ug_programs" json:"ug_programs"`
	UGPercentage       float64 `yaml:"ug_percentage" json:"ug_percentage"`
	CouncilPrograms    float64 `yaml:"council_programs" json:"council_programs"`
	CouncilPercentage  float64 `yaml:"council_percentage" json:"council_percentage"`
	Councils           float64 `yaml:"councils" json:"councils"`
	BachelorPrograms   float64 `yaml:"bachelor_programs" json:"bachelor_programs"`
	BachelorPercentage float64 `yaml:"bachelor_percentage" json:"bachelor_percentage"`
	BVocPrograms       float64 `yaml:"bvoc_programs" json:"bvoc_programs"`
	BVocPercentage     float64 `yaml:"bvoc_percentage" json:"bvoc_percentage"`
}

type institutionsFile struct {
	Institutions []Institution `yaml:"institutions"`
}

type rawInstitutionsFile struct {
	Institutions []map[string]any `yaml:"institutions"`
}

// loadInstitutions decodes the dataset twice: typed for the dashboard and
// as raw maps so lookup tables can reference attributes by name.
func loadInstitutions(fsys fs.FS) ([]Institution, []map[string]any, error) {
	data, err := fs.ReadFile(fsys, "institutions.yaml")
	if err != nil {
		return nil, nil, fmt.Errorf("reading institutions: %w", err)
	}

	var typed institutionsFile
	if err := yaml.Unmarshal(data, &typed); err != nil {
		return nil, nil, fmt.Errorf("institutions.yaml: %w", err)
	}
	var raw rawInstitutionsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("institutions.yaml: %w", err)
	}

	seen := make(map[string]bool, len(typed.Institutions))
	for _, inst := range typed.Institutions {
		if inst.Name == "" {
			return nil, nil, fmt.Errorf("institutions.yaml: institution without name")
		}
		if seen[inst.Name] {
			return nil, nil, fmt.Errorf("institutions.yaml: duplicate institution %q", inst.Name)
		}
		seen[inst.Name] = true
	}
	return typed.Institutions, raw.Institutions, nil
}
