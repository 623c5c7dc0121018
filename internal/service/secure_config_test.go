package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"datagage/internal/models"
	"datagage/internal/repository"
)

func testKey(b byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, 32))
}

func mustSealer(t *testing.T, primary, previous string) *ConfigSealer {
	t.Helper()
	s, err := NewConfigSealer(primary, previous)
	if err != nil {
		t.Fatalf("NewConfigSealer: %v", err)
	}
	return s
}

func TestNewConfigSealer(t *testing.T) {
	cases := []struct {
		name     string
		primary  string
		previous string
		enabled  bool
		wantErr  bool
	}{
		{name: "disabled", enabled: false},
		{name: "base64 key", primary: testKey(1), enabled: true},
		{name: "raw key", primary: "raw-key-material-raw-key-materia", enabled: true},
		{name: "with previous", primary: testKey(1), previous: testKey(2), enabled: true},
		{name: "short key", primary: "short", wantErr: true},
		{name: "previous without primary", previous: testKey(2), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewConfigSealer(tc.primary, tc.previous)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Enabled() != tc.enabled {
				t.Fatalf("enabled=%v want %v", s.Enabled(), tc.enabled)
			}
		})
	}
}

func TestConfigSealer_SealOpen(t *testing.T) {
	s := mustSealer(t, testKey(1), "")
	cfg := map[string]any{
		"host":     "db.internal",
		"port":     5432,
		"password": "pw",
		"tunnel": map[string]any{
			"ssh_private_key": "-----BEGIN KEY-----",
			"tunnel_host":     "bastion",
		},
	}
	sealed, err := s.Seal(cfg)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed["host"] != "db.internal" || sealed["port"] != 5432 {
		t.Fatalf("plain fields changed: %+v", sealed)
	}
	pw, ok := sealed["password"].(map[string]any)
	if !ok || !isSealed(pw) {
		t.Fatalf("password not sealed: %#v", sealed["password"])
	}
	tunnel := sealed["tunnel"].(map[string]any)
	if _, ok := tunnel["ssh_private_key"].(map[string]any); !ok {
		t.Fatalf("nested secret not sealed: %#v", tunnel)
	}
	if tunnel["tunnel_host"] != "bastion" {
		t.Fatalf("tunnel_host=%v", tunnel["tunnel_host"])
	}
	if cfg["password"] != "pw" {
		t.Fatalf("input mutated")
	}

	opened, failed := s.Open(sealed)
	if len(failed) != 0 {
		t.Fatalf("failed=%v", failed)
	}
	if opened["password"] != "pw" {
		t.Fatalf("password=%v", opened["password"])
	}
	if opened["tunnel"].(map[string]any)["ssh_private_key"] != "-----BEGIN KEY-----" {
		t.Fatalf("nested=%v", opened["tunnel"])
	}
}

func TestConfigSealer_FieldNameIsBound(t *testing.T) {
	s := mustSealer(t, testKey(1), "")
	sealed, err := s.Seal(map[string]any{"password": "pw"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	moved := map[string]any{"api_token": sealed["password"]}
	_, failed := s.Open(moved)
	if len(failed) != 1 || failed[0] != "api_token" {
		t.Fatalf("failed=%v", failed)
	}
}

func TestConfigSealer_DisabledPassesThrough(t *testing.T) {
	s := mustSealer(t, "", "")
	cfg := map[string]any{"password": "pw"}
	out, err := s.Seal(cfg)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if out["password"] != "pw" {
		t.Fatalf("password=%v", out["password"])
	}
	var nilSealer *ConfigSealer
	if nilSealer.Enabled() {
		t.Fatalf("nil sealer enabled")
	}
	if out, _ := nilSealer.Seal(cfg); out["password"] != "pw" {
		t.Fatalf("nil sealer changed value")
	}
}

func TestConfigSealer_Reseal(t *testing.T) {
	old := mustSealer(t, testKey(1), "")
	sealed, err := old.Seal(map[string]any{"password": "pw", "host": "h"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	raw, _ := json.Marshal(sealed)

	rotated := mustSealer(t, testKey(2), testKey(1))
	out, changed, err := rotated.Reseal(raw)
	if err != nil || !changed {
		t.Fatalf("Reseal changed=%v err=%v", changed, err)
	}

	current := mustSealer(t, testKey(2), "")
	var cfg map[string]any
	if err := json.Unmarshal(out, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opened, failed := current.Open(cfg)
	if len(failed) != 0 || opened["password"] != "pw" || opened["host"] != "h" {
		t.Fatalf("opened=%v failed=%v", opened, failed)
	}

	if _, changed, err := rotated.Reseal(out); err != nil || changed {
		t.Fatalf("second Reseal changed=%v err=%v", changed, err)
	}

	plain, changed, err := current.Reseal([]byte(`{"password":"pw"}`))
	if err != nil || !changed {
		t.Fatalf("plaintext Reseal changed=%v err=%v", changed, err)
	}
	if bytes.Contains(plain, []byte(`"pw"`)) {
		t.Fatalf("plaintext survived: %s", plain)
	}

	stranger := mustSealer(t, testKey(3), "")
	if _, _, err := stranger.Reseal(out); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestRedact(t *testing.T) {
	s := mustSealer(t, testKey(1), "")
	sealed, _ := s.Seal(map[string]any{"client_secret": "x"})
	cfg := map[string]any{
		"host":          "h",
		"password":      "pw",
		"empty_token":   "",
		"client_secret": sealed["client_secret"],
		"credentials":   map[string]any{"refresh_token": "r", "auth_type": "oauth"},
	}
	out := Redact(cfg)
	cases := map[string]any{
		"host":          "h",
		"password":      redactedValue,
		"empty_token":   "",
		"client_secret": redactedValue,
	}
	for k, want := range cases {
		if out[k] != want {
			t.Fatalf("%s=%v want %v", k, out[k], want)
		}
	}
	creds := out["credentials"].(map[string]any)
	if creds["refresh_token"] != redactedValue || creds["auth_type"] != "oauth" {
		t.Fatalf("credentials=%v", creds)
	}
}

func TestCreateSource_SealsAndRedacts(t *testing.T) {
	w, _, r := newWorkflow()
	w.Secrets = mustSealer(t, testKey(1), "")
	res, err := w.CreateSource(context.Background(), postgresInput())
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if strings.Contains(string(res.Source.ConnectionConfiguration), `"pw"`) {
		t.Fatalf("response leaks password: %s", res.Source.ConnectionConfiguration)
	}
	if !strings.Contains(string(res.Source.ConnectionConfiguration), redactedValue) {
		t.Fatalf("response not redacted: %s", res.Source.ConnectionConfiguration)
	}

	stored, _ := r.GetSource(context.Background(), res.Source.SourceID)
	var cfg map[string]any
	if err := json.Unmarshal(stored.ConnectionConfiguration, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opened, failed := w.Secrets.Open(cfg)
	if len(failed) != 0 || opened["password"] != "pw" {
		t.Fatalf("stored config does not open: %v %v", opened, failed)
	}

	list, err := w.ListSources(context.Background(), repository.ListSourcesParams{Limit: 50})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSources len=%d err=%v", len(list), err)
	}
	if strings.Contains(string(list[0].ConnectionConfiguration), "aes-gcm") {
		t.Fatalf("list exposes sealed value: %s", list[0].ConnectionConfiguration)
	}
}

func TestResealConfigs(t *testing.T) {
	w, _, r := newWorkflow()
	ctx := context.Background()
	_ = r.CreateSource(ctx, &models.Source{SourceID: "s1", Name: "a", SourceType: "postgres", ConnectionConfiguration: []byte(`{"host":"h","password":"pw"}`)})
	_ = r.CreateSource(ctx, &models.Source{SourceID: "s2", Name: "b", SourceType: "csv", ConnectionConfiguration: []byte(`{"url":"https://x"}`)})

	if n, err := w.ResealConfigs(ctx); err != nil || n != 0 {
		t.Fatalf("disabled reseal n=%d err=%v", n, err)
	}

	w.Secrets = mustSealer(t, testKey(1), "")
	n, err := w.ResealConfigs(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResealConfigs n=%d err=%v", n, err)
	}
	s1, _ := r.GetSource(ctx, "s1")
	if strings.Contains(string(s1.ConnectionConfiguration), `"pw"`) {
		t.Fatalf("s1 still plaintext: %s", s1.ConnectionConfiguration)
	}
	if n, err := w.ResealConfigs(ctx); err != nil || n != 0 {
		t.Fatalf("second reseal n=%d err=%v", n, err)
	}
}
