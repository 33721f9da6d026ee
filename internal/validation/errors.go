package validation

import (
	"strings"
)

// Rule names attached to field errors.
const (
	RuleRequired = "required"
	RuleType     = "type"
	RuleMin      = "min_length"
	RuleMax      = "max_length"
	RuleFormat   = "format"
	RuleSecurity = "security_pattern"
)

// FieldError is a single failed rule on one field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
	// Threat is set for RuleSecurity errors.
	Threat Threat
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Errors accumulates field errors in the order they were found.
type Errors []FieldError

func (e Errors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add appends an error for field.
func (e *Errors) Add(field, rule, message string) {
	*e = append(*e, FieldError{Field: field, Rule: rule, Message: message})
}

// HasErrors reports whether anything was recorded.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// AsMap groups messages by field name.
func (e Errors) AsMap() map[string][]string {
	result := make(map[string][]string, len(e))
	for _, err := range e {
		result[err.Field] = append(result[err.Field], err.Message)
	}
	return result
}

// SecurityFields lists the fields rejected by a malicious-input detector.
func (e Errors) SecurityFields() []string {
	var fields []string
	for _, err := range e {
		if err.Rule == RuleSecurity {
			fields = append(fields, err.Field)
		}
	}
	return fields
}

// HasSecurityViolation reports whether any error came from a detector.
func (e Errors) HasSecurityViolation() bool {
	return len(e.SecurityFields()) > 0
}
