package sourcetype

const maxUploadBytes = 50 << 20

var dateFormats = []Option{
	{Value: "YYYY-MM-DD", Text: "YYYY-MM-DD"},
	{Value: "MM/DD/YYYY", Text: "MM/DD/YYYY"},
	{Value: "DD/MM/YYYY", Text: "DD/MM/YYYY"},
	{Value: "YYYY-MM-DD HH:mm:ss", Text: "YYYY-MM-DD HH:mm:ss"},
}

// catalog is never handed out directly; Get and List return copies.
var catalog = map[Type]Descriptor{
	MySQL: {
		ID:             string(MySQL),
		Name:           "MySQL Database",
		Description:    "Connect to MySQL or MariaDB database",
		Icon:           "mdi-database",
		TestConnection: true,
		FormFields: append(databaseFields(3306),
			Field{Name: "ssl", Label: "Use SSL", Type: "checkbox", Description: "Enable SSL/TLS encrypted connection", Default: false},
		),
		AdvancedOptions: databaseAdvanced([]Option{
			{Value: "standard", Text: "Standard"},
			{Value: "cdc", Text: "CDC (Change Data Capture)"},
		}),
	},
	Postgres: {
		ID:             string(Postgres),
		Name:           "PostgreSQL",
		Description:    "Connect to PostgreSQL database",
		Icon:           "mdi-database",
		TestConnection: true,
		FormFields: append(databaseFields(5432),
			Field{Name: "schema", Label: "Schema", Type: "text", Description: "Database schema (default: public)", Default: "public"},
			Field{Name: "ssl", Label: "Use SSL", Type: "checkbox", Description: "Enable SSL/TLS encrypted connection", Default: true},
		),
		AdvancedOptions: databaseAdvanced([]Option{
			{Value: "standard", Text: "Standard"},
			{Value: "logical_replication", Text: "Logical Replication (CDC)"},
		}),
	},
	GoogleSheets: {
		ID:             string(GoogleSheets),
		Name:           "Google Sheets",
		Description:    "Connect to Google Sheets",
		Icon:           "mdi-google-spreadsheet",
		TestConnection: true,
		FormFields: []Field{
			{
				Name: "spreadsheetLink", Label: "Spreadsheet Link", Type: "text", Required: true,
				Description: "URL of the Google Spreadsheet",
				Hint:        "e.g., https://docs.google.com/spreadsheets/d/1abc...",
				Validation:  RuleSpreadsheetURL,
			},
			{
				Name: "authMethod", Label: "Authentication Method", Type: "select", Required: true,
				Description: "Method to authenticate with Google Sheets",
				Options: []Option{
					{Value: "service_account", Text: "Service Account (recommended)"},
					{Value: "oauth", Text: "OAuth 2.0"},
				},
				Default: "service_account",
			},
			{
				Name: "credentials", Label: "Service Account JSON", Type: "textarea", Required: true,
				Description:      "JSON credentials for your Google service account",
				ConditionalField: "authMethod", ConditionalValue: "service_account",
				Validation: RuleJSON,
			},
		},
		AuthInstructions: "Create a Google Cloud project, enable the Google Sheets API, create service account " +
			"credentials, download the JSON key and share the spreadsheet with the service account email.",
	},
	CSV: {
		ID:          string(CSV),
		Name:        "CSV File",
		Description: "Upload and process CSV files",
		Icon:        "mdi-file-delimited",
		FileUpload:  &FileUpload{Accept: ".csv", MaxSize: maxUploadBytes},
		FormFields: append(append(fileIdentityFields("csvFile", "CSV File", ".csv", true),
			Field{
				Name: "uploadMethod", Label: "Upload Method", Type: "select", Required: true,
				Description: "How to upload your CSV files",
				Options: []Option{
					{Value: "direct_upload", Text: "Direct Upload"},
					{Value: "sftp", Text: "SFTP Server"},
					{Value: "url", Text: "URL"},
				},
				Default: "direct_upload",
			},
			Field{Name: "fileUrl", Label: "File URL", Type: "text", Required: true, Description: "URL to the CSV file",
				ConditionalField: "uploadMethod", ConditionalValue: "url", Validation: RuleURL},
			Field{Name: "sftpHost", Label: "SFTP Host", Type: "text", Required: true, Description: "SFTP server hostname or IP",
				ConditionalField: "uploadMethod", ConditionalValue: "sftp"},
			Field{Name: "sftpPort", Label: "SFTP Port", Type: "number", Required: true, Description: "SFTP server port (usually 22)",
				Default: 22, ConditionalField: "uploadMethod", ConditionalValue: "sftp", Validation: RulePort},
			Field{Name: "sftpUser", Label: "SFTP Username", Type: "text", Required: true, Description: "SFTP username",
				ConditionalField: "uploadMethod", ConditionalValue: "sftp"},
			Field{Name: "sftpPassword", Label: "SFTP Password", Type: "password", Required: true, Description: "SFTP password",
				ConditionalField: "uploadMethod", ConditionalValue: "sftp"},
			Field{Name: "sftpPath", Label: "SFTP Path", Type: "text", Required: true, Description: "Path to CSV files on SFTP server",
				Default: "/", ConditionalField: "uploadMethod", ConditionalValue: "sftp"},
			Field{
				Name: "delimiter", Label: "Delimiter", Type: "select", Required: true,
				Description: "Character used to separate values",
				Options: []Option{
					{Value: ",", Text: "Comma (,)"},
					{Value: ";", Text: "Semicolon (;)"},
					{Value: "\\t", Text: "Tab"},
					{Value: "|", Text: "Pipe (|)"},
					{Value: "custom", Text: "Custom..."},
				},
				Default: ",",
			},
			Field{Name: "customDelimiter", Label: "Custom Delimiter", Type: "text", Required: true,
				Description:      "Specify a custom delimiter character",
				ConditionalField: "delimiter", ConditionalValue: "custom"},
		), tabularFields()...),
		AdvancedOptions: []Field{
			{
				Name: "encoding", Label: "File Encoding", Type: "select",
				Description: "Character encoding of the CSV file",
				Options: []Option{
					{Value: "UTF-8", Text: "UTF-8 (Recommended)"},
					{Value: "ISO-8859-1", Text: "ISO-8859-1 (Latin-1)"},
					{Value: "UTF-16", Text: "UTF-16"},
					{Value: "ASCII", Text: "ASCII"},
				},
				Default: "UTF-8",
			},
			{
				Name: "quoteChar", Label: "Quote Character", Type: "select",
				Description: "Character used to quote fields",
				Options: []Option{
					{Value: `"`, Text: `Double Quote (")`},
					{Value: "'", Text: "Single Quote (')"},
					{Value: "none", Text: "None"},
				},
				Default: `"`,
			},
		},
	},
	Excel: {
		ID:          string(Excel),
		Name:        "Excel File",
		Description: "Upload and process Excel files (XLSX, XLS)",
		Icon:        "mdi-microsoft-excel",
		FileUpload:  &FileUpload{Accept: ".xlsx,.xls", MaxSize: maxUploadBytes},
		FormFields: append(append(fileIdentityFields("excelFile", "Excel File", ".xlsx,.xls", false),
			Field{Name: "sheet", Label: "Sheet Name", Type: "text",
				Description: "Name of the sheet to import (leave blank for first sheet)", Default: "Sheet1"},
		), tabularFields()...),
		AdvancedOptions: []Field{
			{Name: "cellRange", Label: "Cell Range", Type: "text",
				Description: "Range of cells to import (e.g., A1:H100)", Validation: RuleCellRange},
			{Name: "preserveFormatting", Label: "Preserve Formatting", Type: "checkbox",
				Description: "Preserve cell formatting (colors, fonts, etc.)", Default: false},
		},
	},
}

func databaseFields(defaultPort int) []Field {
	return []Field{
		{Name: "host", Label: "Host", Type: "text", Required: true,
			Description: "Database server hostname or IP address", Hint: "e.g., localhost or db.example.com"},
		{Name: "port", Label: "Port", Type: "number", Required: true,
			Description: "Database server port number", Default: defaultPort, Validation: RulePort},
		{Name: "database", Label: "Database", Type: "text", Required: true,
			Description: "Name of the database to connect to"},
		{Name: "username", Label: "Username", Type: "text", Required: true,
			Description: "Database user with necessary permissions"},
		{Name: "password", Label: "Password", Type: "password", Required: true,
			Description: "Database user password"},
	}
}

func databaseAdvanced(replication []Option) []Field {
	return []Field{
		{Name: "connectionTimeout", Label: "Connection Timeout (s)", Type: "number",
			Description: "Timeout in seconds for database connections", Default: 30, Validation: RuleNonNegative},
		{Name: "replicationMethod", Label: "Replication Method", Type: "select",
			Description: "Method to use for replicating data", Options: replication, Default: "standard"},
	}
}

func fileIdentityFields(fileField, fileLabel, accept string, uploadOnly bool) []Field {
	file := Field{Name: fileField, Label: fileLabel, Type: "file", Accept: accept, Required: true,
		Description: "Select the file to upload"}
	if uploadOnly {
		file.ConditionalField, file.ConditionalValue = "uploadMethod", "direct_upload"
	}
	return []Field{
		{Name: "name", Label: "Source Name", Type: "text", Required: true,
			Description: "Give this data source a name for easy identification"},
		{Name: "datasetName", Label: "Dataset Name", Type: "text", Required: true,
			Description: "Name of the dataset (used for organizing your data)"},
		file,
	}
}

func tabularFields() []Field {
	return []Field{
		{Name: "hasHeader", Label: "First Row is Header", Type: "checkbox",
			Description: "First row contains column names", Default: true},
		{Name: "dateFormat", Label: "Date Format", Type: "select",
			Description: "Format of date columns", Options: dateFormats, Default: "YYYY-MM-DD"},
		{Name: "nullValues", Label: "Null Value Markers", Type: "text",
			Description: "Comma-separated values to treat as NULL (e.g., NA, null, '')",
			Default:     "NA, null, ", Validation: RuleNullMarkers},
		{Name: "skipRows", Label: "Skip Initial Rows", Type: "number",
			Description: "Number of rows to skip from the beginning", Default: 0, Validation: RuleNonNegative},
	}
}

// List returns every descriptor in display order.
func List() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, t := range All() {
		out = append(out, catalog[t].clone())
	}
	return out
}

func Get(id string) (Descriptor, error) {
	t, err := Parse(id)
	if err != nil {
		return Descriptor{}, err
	}
	return Lookup(t), nil
}

// Lookup returns the descriptor of a parsed type.
func Lookup(t Type) Descriptor {
	return catalog[t].clone()
}
