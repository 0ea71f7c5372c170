package schemas

// RecognizeStatus is the user-visible outcome of a recognition pass.
type RecognizeStatus string

const (
	StatusSuccess            RecognizeStatus = "success"
	StatusNoForm             RecognizeStatus = "no_form"
	StatusAlreadyRecognizing RecognizeStatus = "already_recognizing"
)

// DetectResult summarizes what an extraction pass found, without matching.
type DetectResult struct {
	HasForm    bool                `json:"hasForm"`
	FieldCount int                 `json:"fieldCount"`
	Counts     map[ControlKind]int `json:"counts,omitempty"`
}

// RecognizeResult is the outcome of mapping a page's fields to standard
// fields. Mappings is empty unless Status is success.
type RecognizeResult struct {
	Status     RecognizeStatus `json:"status"`
	Method     MatchMethod     `json:"method,omitempty"`
	Mappings   []FieldMapping  `json:"mappings,omitempty"`
	FieldCount int             `json:"fieldCount"`
}

// FieldError records a non-fatal, per-field fill failure.
type FieldError struct {
	Field  StandardField `json:"field"`
	Reason string        `json:"reason"`
}

// FillResult is the always-returned summary of a fill operation. Partial
// success is normal: individual field failures land in Errors and never
// abort the run.
type FillResult struct {
	OperationID string        `json:"operationId"`
	FilledCount int           `json:"filledCount"`
	TotalFields int           `json:"totalFields"`
	Errors      []FieldError  `json:"errors,omitempty"`
	HasCaptcha  bool          `json:"hasCaptcha"`
}
