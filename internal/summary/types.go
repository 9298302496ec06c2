package summary

import "context"

// Data is the structured medical summary extracted from a transcript.
// Field names mirror the document store schema.
type Data struct {
	Summary          string `json:"summary" bson:"summary"`
	MedicalCondition string `json:"medical_condition" bson:"medical_condition"`
	TreatmentPlan    string `json:"treatment_plan" bson:"treatment_plan"`
	FollowupDate     string `json:"followup_date" bson:"followup_date"`
}

// Summarizer produces a structured summary from free transcript text.
// Implementations must always return a usable Data value: on any upstream
// or parsing failure the fields are explicit placeholders, never empty
// structs or nil.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (Data, error)
}

// Placeholder returns the fallback summary used when generation or parsing
// fails. The transcript excerpt keeps the record useful even without the
// model's help.
func Placeholder(transcript string) Data {
	excerpt := transcript
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	if excerpt == "" {
		excerpt = "Not available"
	}
	return Data{
		Summary:          excerpt,
		MedicalCondition: "Not extracted",
		TreatmentPlan:    "Not extracted",
		FollowupDate:     "Not specified",
	}
}
