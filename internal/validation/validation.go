// Package validation defines field-scoped validation errors returned by
// lifecycle operations so handlers can attach feedback to form fields.
package validation

import "errors"

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Errors struct {
	Fields []FieldError `json:"errors"`
}

func (e *Errors) Error() string {
	return "validation_error"
}

func (e *Errors) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

func (e *Errors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns the receiver as error, or nil when no fields were added.
func (e *Errors) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// AsErrors unwraps err into *Errors when it carries field feedback.
func AsErrors(err error) (*Errors, bool) {
	var verr *Errors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
