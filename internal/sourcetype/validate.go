package sourcetype

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Validation rule names referenced by Field.Validation.
const (
	RulePort           = "port"
	RuleSpreadsheetURL = "spreadsheet_url"
	RuleJSON           = "json"
	RuleURL            = "url"
	RuleNonNegative    = "non_negative"
	RuleNullMarkers    = "null_markers"
	RuleCellRange      = "cell_range"
)

const maxNullMarkerLen = 32

var (
	spreadsheetURLPattern = regexp.MustCompile(`^https://docs\.google\.com/spreadsheets/d/[\w-]+`)
	fileURLPattern        = regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)
	cellRangePattern      = regexp.MustCompile(`^[A-Z]+[0-9]+:[A-Z]+[0-9]+$`)
)

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

var rules = map[string]func(v any) string{
	RulePort: func(v any) string {
		n, err := intValue(v, 0)
		if err != nil || n <= 0 || n >= 65536 {
			return "Port must be between 1-65535"
		}
		return ""
	},
	RuleSpreadsheetURL: func(v any) string {
		if !spreadsheetURLPattern.MatchString(stringValue(v)) {
			return "Please enter a valid Google Sheets URL"
		}
		return ""
	},
	RuleJSON: func(v any) string {
		switch x := v.(type) {
		case map[string]any:
			return ""
		case string:
			if json.Valid([]byte(x)) {
				return ""
			}
		}
		return "Invalid JSON format"
	},
	RuleURL: func(v any) string {
		if !fileURLPattern.MatchString(stringValue(v)) {
			return "Please enter a valid URL"
		}
		return ""
	},
	RuleNonNegative: func(v any) string {
		n, err := intValue(v, 0)
		if err != nil || n < 0 {
			return "Must be zero or a positive number"
		}
		return ""
	},
	RuleNullMarkers: func(v any) string {
		for _, part := range strings.Split(stringValue(v), ",") {
			if len(strings.TrimSpace(part)) > maxNullMarkerLen {
				return "Null value markers must be short tokens"
			}
		}
		return ""
	},
	RuleCellRange: func(v any) string {
		s := stringValue(v)
		if s == "" || cellRangePattern.MatchString(s) {
			return ""
		}
		return "Invalid cell range format (e.g., A1:H100)"
	},
}

// Validate checks form values against the type's form schema. Hidden
// conditional fields are skipped; required fields with a default are
// satisfied by the default.
func Validate(t Type, values map[string]any) []FieldError {
	d, ok := catalog[t]
	if !ok {
		return []FieldError{{Field: "sourceType", Message: (&UnsupportedTypeError{ID: string(t)}).Error()}}
	}
	var errs []FieldError
	for _, group := range [][]Field{d.FormFields, d.AdvancedOptions} {
		for _, f := range group {
			if !f.visible(values) {
				continue
			}
			v, present := values[f.Name]
			if !present || isBlank(v) {
				if f.Required && f.Default == nil {
					errs = append(errs, FieldError{Field: f.Name, Message: fmt.Sprintf("%s is required", f.Label)})
				}
				continue
			}
			if rule, ok := rules[f.Validation]; ok {
				if msg := rule(v); msg != "" {
					errs = append(errs, FieldError{Field: f.Name, Message: msg})
				}
			}
		}
	}
	return errs
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}
