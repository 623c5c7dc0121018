package sourcetype

import (
	"errors"
	"reflect"
	"testing"
)

func TestGet_StructurallyEqualAcrossCalls(t *testing.T) {
	for _, typ := range All() {
		a, err := Get(string(typ))
		if err != nil {
			t.Fatalf("Get(%s): %v", typ, err)
		}
		// Mutating a returned copy must not leak into the catalog.
		a.FormFields[0].Label = "changed"
		if len(a.FormFields[0].Options) > 0 {
			a.FormFields[0].Options[0].Text = "changed"
		}
		b, _ := Get(string(typ))
		c, _ := Get(string(typ))
		if !reflect.DeepEqual(b, c) {
			t.Fatalf("Get(%s) not stable", typ)
		}
		if b.FormFields[0].Label == "changed" {
			t.Fatalf("Get(%s) returned shared field slice", typ)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("oracle")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) || ute.ID != "oracle" {
		t.Fatalf("err=%v want UnsupportedTypeError{oracle}", err)
	}
}

func TestList_DisplayOrder(t *testing.T) {
	got := List()
	if len(got) != 5 {
		t.Fatalf("len=%d want=5", len(got))
	}
	want := []string{"mysql", "postgres", "google-sheets", "csv", "excel"}
	for i, d := range got {
		if d.ID != want[i] {
			t.Fatalf("List()[%d]=%s want=%s", i, d.ID, want[i])
		}
	}
}

func TestDefinitionID(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{MySQL, "435bb9a5-7887-4809-aa58-28c27df0d7ad"},
		{Postgres, "2168e9f4-19ca-4019-adf5-354350c5dbef"},
		{GoogleSheets, "71607ba1-1d4f-4494-a784-63d33e0a2673"},
		{CSV, "0d7b5d7f-e04b-4684-b0d1-5baef1b16a76"},
		{Excel, "0d7b5d7f-e04b-4684-b0d1-5baef1b16a76"},
	}
	for _, tc := range cases {
		got, err := DefinitionID(tc.typ)
		if err != nil || got != tc.want {
			t.Fatalf("DefinitionID(%s)=%q,%v want=%q", tc.typ, got, err, tc.want)
		}
	}
	if _, err := DefinitionID(Type("salesforce")); err == nil {
		t.Fatalf("expected error for salesforce")
	}
	if _, ok := LookupDefinition("d9c135ee-0acb-4101-b996-1a1cfca10536"); !ok {
		t.Fatalf("salesforce definition missing from catalog")
	}
}

func TestBuildConnectionConfig_Postgres(t *testing.T) {
	got, err := BuildConnectionConfig(Postgres, map[string]any{
		"host":     "db.test",
		"port":     "5432",
		"database": "sales",
		"username": "u",
		"password": "p",
		"ssl":      "false",
	})
	if err != nil {
		t.Fatalf("BuildConnectionConfig: %v", err)
	}
	want := map[string]any{
		"host":               "db.test",
		"port":               5432,
		"database":           "sales",
		"username":           "u",
		"password":           "p",
		"ssl":                false,
		"replication_method": "standard",
		"connection_timeout": 30,
		"schema":             "public",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestBuildConnectionConfig_MySQLDefaults(t *testing.T) {
	got, err := BuildConnectionConfig(MySQL, map[string]any{"host": "h", "ssl": true})
	if err != nil {
		t.Fatalf("BuildConnectionConfig: %v", err)
	}
	if got["port"] != 3306 || got["ssl"] != true {
		t.Fatalf("port=%v ssl=%v", got["port"], got["ssl"])
	}
	if _, ok := got["schema"]; ok {
		t.Fatalf("mysql config must not carry schema")
	}
}

func TestBuildConnectionConfig_GoogleSheets(t *testing.T) {
	got, err := BuildConnectionConfig(GoogleSheets, map[string]any{
		"spreadsheetLink": "https://docs.google.com/spreadsheets/d/1abc-XY_z/edit#gid=0",
		"authMethod":      "service_account",
		"credentials":     `{"type":"service_account","project_id":"p"}`,
	})
	if err != nil {
		t.Fatalf("BuildConnectionConfig: %v", err)
	}
	if got["spreadsheet_id"] != "1abc-XY_z" {
		t.Fatalf("spreadsheet_id=%v", got["spreadsheet_id"])
	}
	creds, ok := got["credentials_json"].(map[string]any)
	if !ok || creds["project_id"] != "p" {
		t.Fatalf("credentials_json=%v", got["credentials_json"])
	}

	_, err = BuildConnectionConfig(GoogleSheets, map[string]any{"spreadsheetLink": "https://example.com/x"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
	_, err = BuildConnectionConfig(GoogleSheets, map[string]any{
		"spreadsheetLink": "https://docs.google.com/spreadsheets/d/abc",
		"authMethod":      "service_account",
		"credentials":     "{not json",
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
}

func TestBuildConnectionConfig_CSV(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]any
		check  func(t *testing.T, got map[string]any)
	}{
		{
			name:   "direct upload defaults",
			values: map[string]any{"name": "orders", "datasetName": "ds", "csvFile": "/tmp/a.csv"},
			check: func(t *testing.T, got map[string]any) {
				if got["upload_type"] != "local" || got["file_path"] != "/tmp/a.csv" {
					t.Fatalf("upload=%v path=%v", got["upload_type"], got["file_path"])
				}
				if !reflect.DeepEqual(got["null_values"], []string{"NA", "null", ""}) {
					t.Fatalf("null_values=%v", got["null_values"])
				}
				if got["delimiter"] != "," || got["quote_char"] != `"` || got["encoding"] != "UTF-8" {
					t.Fatalf("delimiter=%v quote=%v encoding=%v", got["delimiter"], got["quote_char"], got["encoding"])
				}
				if got["has_header"] != true || got["format"] != "csv" {
					t.Fatalf("has_header=%v format=%v", got["has_header"], got["format"])
				}
			},
		},
		{
			name: "custom delimiter and no quoting",
			values: map[string]any{
				"delimiter": "custom", "customDelimiter": "#", "quoteChar": "none",
				"nullValues": " N/A , - ", "skipRows": float64(2), "hasHeader": "false",
			},
			check: func(t *testing.T, got map[string]any) {
				if got["delimiter"] != "#" {
					t.Fatalf("delimiter=%v", got["delimiter"])
				}
				if v, ok := got["quote_char"]; !ok || v != nil {
					t.Fatalf("quote_char=%v want nil", v)
				}
				if !reflect.DeepEqual(got["null_values"], []string{"N/A", "-"}) {
					t.Fatalf("null_values=%v", got["null_values"])
				}
				if got["skip_rows"] != 2 || got["has_header"] != false {
					t.Fatalf("skip_rows=%v has_header=%v", got["skip_rows"], got["has_header"])
				}
			},
		},
		{
			name:   "url",
			values: map[string]any{"uploadMethod": "url", "fileUrl": "https://x.test/a.csv"},
			check: func(t *testing.T, got map[string]any) {
				if got["upload_type"] != "url" || got["url"] != "https://x.test/a.csv" {
					t.Fatalf("got=%v", got)
				}
			},
		},
		{
			name: "sftp",
			values: map[string]any{
				"uploadMethod": "sftp", "sftpHost": "h", "sftpUser": "u",
				"sftpPassword": "p", "sftpPath": "/in",
			},
			check: func(t *testing.T, got map[string]any) {
				if got["upload_type"] != "sftp" || got["sftp_port"] != 22 || got["sftp_path"] != "/in" {
					t.Fatalf("got=%v", got)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildConnectionConfig(CSV, tc.values)
			if err != nil {
				t.Fatalf("BuildConnectionConfig: %v", err)
			}
			tc.check(t, got)
		})
	}
}

func TestBuildConnectionConfig_Excel(t *testing.T) {
	got, err := BuildConnectionConfig(Excel, map[string]any{"excelFile": "/tmp/a.xlsx", "preserveFormatting": true})
	if err != nil {
		t.Fatalf("BuildConnectionConfig: %v", err)
	}
	if got["sheet_name"] != "Sheet1" || got["format"] != "excel" || got["preserve_formatting"] != true {
		t.Fatalf("got=%v", got)
	}
	if v, ok := got["cell_range"]; !ok || v != nil {
		t.Fatalf("cell_range=%v want nil", v)
	}
}

func TestBuildConnectionConfig_Unsupported(t *testing.T) {
	_, err := BuildConnectionConfig(Type("oracle"), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want unsupported type", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		typ    Type
		values map[string]any
		fields []string
	}{
		{
			name:   "mysql missing required",
			typ:    MySQL,
			values: map[string]any{"host": "h"},
			fields: []string{"database", "username", "password"},
		},
		{
			name:   "mysql bad port",
			typ:    MySQL,
			values: map[string]any{"host": "h", "port": 70000, "database": "d", "username": "u", "password": "p"},
			fields: []string{"port"},
		},
		{
			name:   "sheets oauth skips credentials",
			typ:    GoogleSheets,
			values: map[string]any{"spreadsheetLink": "https://docs.google.com/spreadsheets/d/abc", "authMethod": "oauth"},
		},
		{
			name: "sheets bad link and json",
			typ:  GoogleSheets,
			values: map[string]any{
				"spreadsheetLink": "https://example.com", "authMethod": "service_account", "credentials": "{",
			},
			fields: []string{"spreadsheetLink", "credentials"},
		},
		{
			name:   "csv url method hides file",
			typ:    CSV,
			values: map[string]any{"name": "n", "datasetName": "d", "uploadMethod": "url", "fileUrl": "ftp://x.test/a.csv"},
		},
		{
			name:   "excel bad range",
			typ:    Excel,
			values: map[string]any{"name": "n", "datasetName": "d", "excelFile": "f", "cellRange": "A1-H2"},
			fields: []string{"cellRange"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := Validate(tc.typ, tc.values)
			got := make([]string, 0, len(errs))
			for _, e := range errs {
				got = append(got, e.Field)
			}
			if len(got) != len(tc.fields) {
				t.Fatalf("fields=%v want=%v", got, tc.fields)
			}
			for i := range got {
				if got[i] != tc.fields[i] {
					t.Fatalf("fields=%v want=%v", got, tc.fields)
				}
			}
		})
	}
}
