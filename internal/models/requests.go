package models

// SingleJobRequest submits one visit form-fill to the automation backend.
// Fields are validated with go-playground/validator tags before submission.
type SingleJobRequest struct {
	// Address is the visit page address the worker should open.
	Address string `json:"address" validate:"required"`
	// Mode selects how the worker fills the form: auto submits as it
	// goes, review stops before the final submit.
	Mode string `json:"mode" validate:"omitempty,oneof=auto review"`
	// ContextID correlates the submission with the caller's session.
	// Assigned by the jobs service when empty.
	ContextID string `json:"context_id,omitempty"`
}

// BatchJobRequest submits a multi-visit run driven from an uploaded file.
type BatchJobRequest struct {
	// FileRef references a previously uploaded visit list.
	FileRef string       `json:"file_ref" validate:"required"`
	Mode    string       `json:"mode" validate:"omitempty,oneof=auto review"`
	Options BatchOptions `json:"options"`
}

// BatchOptions tunes batch execution on the backend side.
type BatchOptions struct {
	MaxVisits   int  `json:"max_visits,omitempty" validate:"omitempty,min=1"`
	StopOnError bool `json:"stop_on_error,omitempty"`
}

// CancelResult is the backend's answer to a cancel request.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
