package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	NameMinLength    = 2
	NameMaxLength    = 100
	EmailMaxLength   = 255
	CompanyMaxLength = 100
	MessageMinLength = 10
	MessageMaxLength = 2000
)

// The local part is limited to the characters SanitizeEmail keeps, so an
// accepted address is never altered by sanitization.
var emailPattern = regexp.MustCompile(`^[a-z0-9._+\-]+@[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?)*\.[a-z]{2,}$`)

// LeadSubmission is a validated and sanitized contact form payload.
type LeadSubmission struct {
	Name    string
	Email   string
	Company *string
	Message string
}

// ValidateLead checks an untyped JSON payload. It never panics; on failure it
// returns the accumulated field errors and a nil submission.
func ValidateLead(payload map[string]any) (*LeadSubmission, Errors) {
	var errs Errors

	name := textField(payload, "name", "Name", true, &errs)
	if name != nil {
		checkLength(&errs, "name", "Name", *name, NameMinLength, NameMaxLength)
		checkThreat(&errs, "name", "Name", *name)
	}

	email := validateEmail(payload, &errs)

	company := textField(payload, "company", "Company name", false, &errs)
	if company != nil {
		if *company == "" {
			company = nil
		} else {
			checkLength(&errs, "company", "Company name", *company, 0, CompanyMaxLength)
			checkThreat(&errs, "company", "Company", *company)
		}
	}

	message := textField(payload, "message", "Message", true, &errs)
	if message != nil {
		checkLength(&errs, "message", "Message", *message, MessageMinLength, MessageMaxLength)
		checkThreat(&errs, "message", "Message", *message)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return &LeadSubmission{
		Name:    *name,
		Email:   email,
		Company: company,
		Message: *message,
	}, nil
}

// textField returns the sanitized value of key, or nil when it is missing,
// blank-and-required, or not a string. Errors are recorded on errs.
func textField(payload map[string]any, key, label string, required bool, errs *Errors) *string {
	raw, present := payload[key]
	if !present || raw == nil {
		if required {
			errs.Add(key, RuleRequired, label+" is required")
		}
		return nil
	}

	str, ok := raw.(string)
	if !ok {
		errs.Add(key, RuleType, fmt.Sprintf("%s must be text", label))
		return nil
	}

	value := SanitizeString(str)
	if value == "" && required {
		errs.Add(key, RuleRequired, label+" is required")
		return nil
	}
	return &value
}

func validateEmail(payload map[string]any, errs *Errors) string {
	raw, present := payload["email"]
	if !present || raw == nil {
		errs.Add("email", RuleRequired, "Email is required")
		return ""
	}
	str, ok := raw.(string)
	if !ok {
		errs.Add("email", RuleType, "Email must be text")
		return ""
	}

	value := strings.ToLower(strings.TrimSpace(str))
	if value == "" {
		errs.Add("email", RuleRequired, "Email is required")
		return ""
	}

	valid := true
	if !emailPattern.MatchString(value) {
		errs.Add("email", RuleFormat, "Please enter a valid email address")
		valid = false
	}
	if utf8.RuneCountInString(value) > EmailMaxLength {
		errs.Add("email", RuleMax, fmt.Sprintf("Email must be less than %d characters", EmailMaxLength))
		valid = false
	}
	if !valid {
		return ""
	}
	return SanitizeEmail(value)
}

func checkLength(errs *Errors, field, label, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	if min > 0 && n < min {
		errs.Add(field, RuleMin, fmt.Sprintf("%s must be at least %d characters", label, min))
	}
	if n > max {
		errs.Add(field, RuleMax, fmt.Sprintf("%s must be less than %d characters", label, max))
	}
}

func checkThreat(errs *Errors, field, label, value string) {
	if threat := DetectThreat(value); threat != ThreatNone {
		*errs = append(*errs, FieldError{
			Field:   field,
			Rule:    RuleSecurity,
			Message: threatMessage(label, threat),
			Threat:  threat,
		})
	}
}
