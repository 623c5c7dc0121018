package sourcetype

// Descriptor is the form schema for one source type.
type Descriptor struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Icon             string      `json:"icon"`
	FormFields       []Field     `json:"formFields"`
	AdvancedOptions  []Field     `json:"advancedOptions,omitempty"`
	TestConnection   bool        `json:"testConnection"`
	FileUpload       *FileUpload `json:"fileUpload,omitempty"`
	AuthInstructions string      `json:"authInstructions,omitempty"`
}

type Field struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Hint        string   `json:"hint,omitempty"`
	Default     any      `json:"defaultValue,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Accept      string   `json:"accept,omitempty"`
	// Conditional fields are shown, and required, only while the named
	// field holds the given value.
	ConditionalField string `json:"conditionalField,omitempty"`
	ConditionalValue string `json:"conditionalValue,omitempty"`
	// Validation names a rule from the rules table in validate.go.
	Validation string `json:"validation,omitempty"`
}

type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

type FileUpload struct {
	Accept   string `json:"accept"`
	MaxSize  int64  `json:"maxSize"`
	Multiple bool   `json:"multiple"`
}

// Summary is the short listing form used by GET /source-types.
type Summary struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	FormFields  []Field `json:"formFields"`
}

func (d Descriptor) Summary() Summary {
	return Summary{
		Type:        d.ID,
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		FormFields:  cloneFields(d.FormFields),
	}
}

func (f Field) visible(values map[string]any) bool {
	if f.ConditionalField == "" {
		return true
	}
	return stringValue(values[f.ConditionalField]) == f.ConditionalValue
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.FormFields = cloneFields(d.FormFields)
	out.AdvancedOptions = cloneFields(d.AdvancedOptions)
	if d.FileUpload != nil {
		fu := *d.FileUpload
		out.FileUpload = &fu
	}
	return out
}

func cloneFields(in []Field) []Field {
	if in == nil {
		return nil
	}
	out := make([]Field, len(in))
	for i, f := range in {
		out[i] = f
		if f.Options != nil {
			out[i].Options = append([]Option(nil), f.Options...)
		}
	}
	return out
}
