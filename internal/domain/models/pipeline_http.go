package models

// Requests for the pipeline HTTP endpoints. Defined in domain for consistency and reuse.

type RunRequest struct {
	Symbols         []string       `json:"symbols" validate:"required,min=1,dive,required"`
	From            string         `json:"from" validate:"required"`
	To              string         `json:"to"`
	Anchor          string         `json:"anchor"`
	Suffix          string         `json:"suffix"`
	Strict          bool           `json:"strict"`
	SkipAlignment   bool           `json:"skip_alignment"`
	SkipValidation  bool           `json:"skip_validation"`
	SkipStorage     bool           `json:"skip_storage"`
	ValidationRules map[string]any `json:"validation_rules"`
	Destination     string         `json:"destination"`
}

// RunReport summarizes one pipeline run for the API and the Kafka audit topic.
type RunReport struct {
	Destination string        `json:"destination"`
	Symbols     string        `json:"symbols"`
	Anchor      string        `json:"anchor"`
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	FeatureHash string        `json:"feature_hash,omitempty"`
	Status      string        `json:"status"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	Steps       []StepSummary `json:"steps"`
}

// StepSummary is the wire form of one pipeline step record.
type StepSummary struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Detail    string `json:"detail,omitempty"`
}
