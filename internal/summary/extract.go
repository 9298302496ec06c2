package summary

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON parses the model's reply into summary fields. The upstream
// model is prompted for strict JSON but its output format is not
// contractually guaranteed, so the parsing contract is: locate the
// outermost brace pair, parse that substring, and report an error on
// anything else. Callers fall back to Placeholder on error.
func ExtractJSON(response string) (Data, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return Data{}, fmt.Errorf("no JSON object found in model response")
	}

	var d Data
	if err := json.Unmarshal([]byte(response[start:end+1]), &d); err != nil {
		return Data{}, fmt.Errorf("failed to parse model response: %w", err)
	}

	return d.withPlaceholders(), nil
}

// withPlaceholders fills any field the model left empty so downstream
// consumers never see a missing value
func (d Data) withPlaceholders() Data {
	if strings.TrimSpace(d.Summary) == "" {
		d.Summary = "Not available"
	}
	if strings.TrimSpace(d.MedicalCondition) == "" {
		d.MedicalCondition = "Not extracted"
	}
	if strings.TrimSpace(d.TreatmentPlan) == "" {
		d.TreatmentPlan = "Not extracted"
	}
	if strings.TrimSpace(d.FollowupDate) == "" {
		d.FollowupDate = "Not specified"
	}
	return d
}
