package sourcetype

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid source configuration")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var defaultNullValues = []string{"NA", "null", ""}

// BuildConnectionConfig maps a dashboard form payload to the connection
// configuration sent to the ELT platform. Missing optional values fall back
// to the type defaults.
func BuildConnectionConfig(t Type, values map[string]any) (map[string]any, error) {
	switch t {
	case MySQL:
		return databaseConfig(values, 3306, false)
	case Postgres:
		return databaseConfig(values, 5432, true)
	case GoogleSheets:
		return sheetsConfig(values)
	case CSV:
		return csvConfig(values)
	case Excel:
		return excelConfig(values)
	}
	return nil, &UnsupportedTypeError{ID: string(t)}
}

func databaseConfig(values map[string]any, defaultPort int, withSchema bool) (map[string]any, error) {
	port, err := intValue(values["port"], defaultPort)
	if err != nil {
		return nil, fmt.Errorf("%w: port: %v", ErrInvalidConfig, err)
	}
	timeout, err := intValue(values["connectionTimeout"], 30)
	if err != nil {
		return nil, fmt.Errorf("%w: connectionTimeout: %v", ErrInvalidConfig, err)
	}
	ssl, err := boolValue(values["ssl"], false)
	if err != nil {
		return nil, fmt.Errorf("%w: ssl: %v", ErrInvalidConfig, err)
	}
	out := map[string]any{
		"host":               stringValue(values["host"]),
		"port":               port,
		"database":           stringValue(values["database"]),
		"username":           stringValue(values["username"]),
		"password":           stringValue(values["password"]),
		"ssl":                ssl,
		"replication_method": stringOr(values["replicationMethod"], "standard"),
		"connection_timeout": timeout,
	}
	if withSchema {
		out["schema"] = stringOr(values["schema"], "public")
	}
	return out, nil
}

func sheetsConfig(values map[string]any) (map[string]any, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(stringValue(values["spreadsheetLink"]))
	if m == nil {
		return nil, fmt.Errorf("%w: invalid Google Sheets URL", ErrInvalidConfig)
	}
	out := map[string]any{"spreadsheet_id": m[1]}
	if stringValue(values["authMethod"]) == "service_account" {
		creds, err := jsonObject(values["credentials"])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid service account credentials: %v", ErrInvalidConfig, err)
		}
		out["credentials_json"] = creds
	}
	return out, nil
}

func csvConfig(values map[string]any) (map[string]any, error) {
	out, err := tabularConfig("csv", values)
	if err != nil {
		return nil, err
	}
	delimiter := stringOr(values["delimiter"], ",")
	if delimiter == "custom" {
		delimiter = stringValue(values["customDelimiter"])
	}
	out["delimiter"] = delimiter
	out["encoding"] = stringOr(values["encoding"], "UTF-8")
	switch q := stringOr(values["quoteChar"], `"`); q {
	case "none":
		out["quote_char"] = nil
	default:
		out["quote_char"] = q
	}

	switch stringOr(values["uploadMethod"], "direct_upload") {
	case "direct_upload":
		out["upload_type"] = "local"
		out["file_path"] = stringValue(values["csvFile"])
	case "url":
		out["upload_type"] = "url"
		out["url"] = stringValue(values["fileUrl"])
	case "sftp":
		port, err := intValue(values["sftpPort"], 22)
		if err != nil {
			return nil, fmt.Errorf("%w: sftpPort: %v", ErrInvalidConfig, err)
		}
		out["upload_type"] = "sftp"
		out["sftp_host"] = stringValue(values["sftpHost"])
		out["sftp_port"] = port
		out["sftp_user"] = stringValue(values["sftpUser"])
		out["sftp_password"] = stringValue(values["sftpPassword"])
		out["sftp_path"] = stringValue(values["sftpPath"])
	default:
		return nil, fmt.Errorf("%w: unknown upload method %q", ErrInvalidConfig, stringValue(values["uploadMethod"]))
	}
	return out, nil
}

func excelConfig(values map[string]any) (map[string]any, error) {
	out, err := tabularConfig("excel", values)
	if err != nil {
		return nil, err
	}
	preserve, err := boolValue(values["preserveFormatting"], false)
	if err != nil {
		return nil, fmt.Errorf("%w: preserveFormatting: %v", ErrInvalidConfig, err)
	}
	out["sheet_name"] = stringOr(values["sheet"], "Sheet1")
	out["file_path"] = stringValue(values["excelFile"])
	if r := stringValue(values["cellRange"]); r != "" {
		out["cell_range"] = r
	} else {
		out["cell_range"] = nil
	}
	out["preserve_formatting"] = preserve
	return out, nil
}

func tabularConfig(format string, values map[string]any) (map[string]any, error) {
	hasHeader, err := boolValue(values["hasHeader"], true)
	if err != nil {
		return nil, fmt.Errorf("%w: hasHeader: %v", ErrInvalidConfig, err)
	}
	skip, err := intValue(values["skipRows"], 0)
	if err != nil {
		return nil, fmt.Errorf("%w: skipRows: %v", ErrInvalidConfig, err)
	}
	return map[string]any{
		"format":       format,
		"name":         stringValue(values["name"]),
		"dataset_name": stringValue(values["datasetName"]),
		"has_header":   hasHeader,
		"date_format":  stringOr(values["dateFormat"], "YYYY-MM-DD"),
		"null_values":  nullValues(values["nullValues"]),
		"skip_rows":    skip,
	}, nil
}

func nullValues(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, strings.TrimSpace(stringValue(item)))
		}
		return out
	}
	s := stringValue(v)
	if s == "" {
		return append([]string(nil), defaultNullValues...)
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func jsonObject(v any) (map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(x), &out); err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.New("expected a JSON object")
		}
		return out, nil
	case nil:
		return nil, errors.New("missing")
	}
	return nil, fmt.Errorf("unexpected %T", v)
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func stringOr(v any, def string) string {
	if s := stringValue(v); s != "" {
		return s
	}
	return def
}

func intValue(v any, def int) (int, error) {
	switch x := v.(type) {
	case nil:
		return def, nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int(x), nil
	case json.Number:
		n, err := x.Int64()
		return int(n), err
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return def, nil
		}
		return strconv.Atoi(s)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

// boolValue accepts JSON booleans and their string forms; "false" is false.
func boolValue(v any, def bool) (bool, error) {
	switch x := v.(type) {
	case nil:
		return def, nil
	case bool:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return def, nil
		}
		return strconv.ParseBool(s)
	}
	return false, fmt.Errorf("unexpected %T", v)
}
