package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalized(r)); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}

// WriteYAML writes r as a YAML document.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(normalized(r)); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}

// normalized replaces nil lists with empty ones so consumers always see
// arrays.
func normalized(r *Report) *Report {
	out := *r
	if out.CPU.TopProcesses == nil {
		out.CPU.TopProcesses = []cpuusage.ProcessUsage{}
	}
	if out.Devices == nil {
		out.Devices = []collector.Device{}
	}
	if out.Diagnosis.Issues == nil {
		out.Diagnosis.Issues = []diagnosis.Issue{}
	}
	if out.Diagnosis.Recommendations == nil {
		out.Diagnosis.Recommendations = []string{}
	}
	return &out
}
