// Package diagnosis fuses battery, CPU, device and wakeup facts into a ranked
// explanation of battery drain.
package diagnosis

import (
	"slices"
	"strings"
)

// Issue is one detected problem.
type Issue struct {
	Text     string   `json:"text" yaml:"text"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// Diagnosis is the final, read-only outcome of one evaluation.
type Diagnosis struct {
	Severity        Severity `json:"severity" yaml:"severity"`
	Issues          []Issue  `json:"issues" yaml:"issues"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// Text renders the diagnosis as a short narrative.
func (d Diagnosis) Text() string {
	if len(d.Issues) == 0 {
		return "No significant battery drain issues detected."
	}

	var lines []string
	switch d.Severity {
	case SeverityHigh:
		lines = append(lines, "Battery drain is HIGH. Multiple issues detected:")
	case SeverityMedium:
		lines = append(lines, "Battery drain is MODERATE. Some issues detected:")
	default:
		lines = append(lines, "Battery drain appears LOW, but some minor issues detected:")
	}
	lines = append(lines, "")

	for _, issue := range d.Issues {
		marker := "• "
		if issue.Severity == SeverityHigh {
			marker = "[HIGH] "
		}
		lines = append(lines, marker+issue.Text)
	}

	if len(d.Recommendations) > 0 {
		lines = append(lines, "", "Recommendations:")
		for _, rec := range d.Recommendations {
			lines = append(lines, "  - "+rec)
		}
	}
	return strings.Join(lines, "\n")
}

// result accumulates rule output. Every method returns a new value and never
// writes through a slice shared with the receiver.
type result struct {
	severity        Severity
	issues          []Issue
	recommendations []string
	done            bool
}

func (r result) addIssue(text string, sev Severity) result {
	r.issues = append(slices.Clip(r.issues), Issue{Text: text, Severity: sev})
	return r
}

func (r result) recommend(text string) result {
	r.recommendations = append(slices.Clip(r.recommendations), text)
	return r
}

// raise escalates to sev; it never lowers the current severity.
func (r result) raise(sev Severity) result {
	if sev > r.severity {
		r.severity = sev
	}
	return r
}

// setIfUnknown only applies sev when no rule has set a severity yet.
func (r result) setIfUnknown(sev Severity) result {
	if r.severity == SeverityUnknown {
		r.severity = sev
	}
	return r
}

func (r result) stop() result {
	r.done = true
	return r
}

func (r result) diagnosis() Diagnosis {
	d := Diagnosis{
		Severity:        r.severity,
		Issues:          slices.Clone(r.issues),
		Recommendations: slices.Clone(r.recommendations),
	}
	if d.Issues == nil {
		d.Issues = []Issue{}
	}
	if d.Recommendations == nil {
		d.Recommendations = []string{}
	}
	return d
}
