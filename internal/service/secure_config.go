package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	sealedEncoding = "aes-gcm-v1"
	redactedValue  = "********"
)

var secretMarkers = []string{"password", "secret", "token", "api_key", "private_key", "credentials_json", "service_account"}

type sealedValue struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// ConfigSealer encrypts the secret fields of a stored connection
// configuration. The field name is bound as additional data, so a sealed
// value only opens under the key it was written for. A sealer without keys
// passes values through unchanged.
type ConfigSealer struct {
	aeads []cipher.AEAD
}

// NewConfigSealer builds a sealer from a primary key and an optional previous
// key that is still accepted when opening. Keys are base64 or raw bytes.
func NewConfigSealer(primary, previous string) (*ConfigSealer, error) {
	s := &ConfigSealer{}
	seen := map[string]bool{}
	for i, k := range []string{primary, previous} {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		aead, err := newAEAD(parseSealKey(k))
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("config encryption key: %w", err)
			}
			return nil, fmt.Errorf("previous config encryption key: %w", err)
		}
		s.aeads = append(s.aeads, aead)
	}
	if strings.TrimSpace(primary) == "" && len(s.aeads) > 0 {
		return nil, fmt.Errorf("previous config encryption key set without a primary key")
	}
	return s, nil
}

func (s *ConfigSealer) Enabled() bool {
	return s != nil && len(s.aeads) > 0
}

// Seal returns a copy of cfg with every secret string field encrypted.
// Nested objects are walked.
func (s *ConfigSealer) Seal(cfg map[string]any) (map[string]any, error) {
	if !s.Enabled() {
		return cfg, nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		switch val := v.(type) {
		case map[string]any:
			if isSealed(val) {
				out[k] = val
				continue
			}
			inner, err := s.Seal(val)
			if err != nil {
				return nil, err
			}
			out[k] = inner
		case string:
			if !isSecretField(k) || val == "" {
				out[k] = val
				continue
			}
			sealed, err := s.seal(k, val)
			if err != nil {
				return nil, err
			}
			out[k] = sealed
		default:
			out[k] = v
		}
	}
	return out, nil
}

func (s *ConfigSealer) seal(field, plain string) (map[string]any, error) {
	aead := s.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal %s: %w", field, err)
	}
	ct := aead.Seal(nil, nonce, []byte(plain), aad(field))
	return map[string]any{
		"enc":   sealedEncoding,
		"nonce": base64.StdEncoding.EncodeToString(nonce),
		"data":  base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Open returns a copy of cfg with sealed fields decrypted. Fields that no
// configured key opens are left sealed and reported in failed.
func (s *ConfigSealer) Open(cfg map[string]any) (out map[string]any, failed []string) {
	out = make(map[string]any, len(cfg))
	for k, v := range cfg {
		m, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		if !isSealed(m) {
			inner, f := s.Open(m)
			out[k] = inner
			failed = append(failed, f...)
			continue
		}
		plain, ok := s.open(k, m)
		if !ok {
			out[k] = m
			failed = append(failed, k)
			continue
		}
		out[k] = plain
	}
	return out, failed
}

func (s *ConfigSealer) open(field string, m map[string]any) (string, bool) {
	if s == nil {
		return "", false
	}
	nonce, err := base64.StdEncoding.DecodeString(fmt.Sprint(m["nonce"]))
	if err != nil {
		return "", false
	}
	ct, err := base64.StdEncoding.DecodeString(fmt.Sprint(m["data"]))
	if err != nil {
		return "", false
	}
	for _, aead := range s.aeads {
		if len(nonce) != aead.NonceSize() {
			continue
		}
		if pt, err := aead.Open(nil, nonce, ct, aad(field)); err == nil {
			return string(pt), true
		}
	}
	return "", false
}

// Reseal opens raw and seals it again under the primary key. changed is
// false when nothing would be rewritten.
func (s *ConfigSealer) Reseal(raw []byte) (out []byte, changed bool, err error) {
	if !s.Enabled() || len(raw) == 0 {
		return raw, false, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return raw, false, nil
	}
	opened, failed := s.Open(cfg)
	if len(failed) > 0 {
		return raw, false, fmt.Errorf("fields sealed under an unknown key: %s", strings.Join(failed, ", "))
	}
	if !hasPlainSecret(cfg) && !s.needsRotation(cfg) {
		return raw, false, nil
	}
	sealed, err := s.Seal(opened)
	if err != nil {
		return raw, false, err
	}
	out, err = json.Marshal(sealed)
	if err != nil {
		return raw, false, err
	}
	return out, true, nil
}

// needsRotation reports whether any sealed field only opens under the
// previous key.
func (s *ConfigSealer) needsRotation(cfg map[string]any) bool {
	if len(s.aeads) < 2 {
		return false
	}
	primary := &ConfigSealer{aeads: s.aeads[:1]}
	_, failed := primary.Open(cfg)
	return len(failed) > 0
}

func hasPlainSecret(cfg map[string]any) bool {
	for k, v := range cfg {
		switch val := v.(type) {
		case string:
			if isSecretField(k) && val != "" {
				return true
			}
		case map[string]any:
			if !isSealed(val) && hasPlainSecret(val) {
				return true
			}
		}
	}
	return false
}

// Redact returns a copy of cfg with secret fields, sealed or not, masked.
func Redact(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		switch val := v.(type) {
		case map[string]any:
			if isSealed(val) {
				out[k] = redactedValue
				continue
			}
			out[k] = Redact(val)
		case string:
			if isSecretField(k) && val != "" {
				out[k] = redactedValue
				continue
			}
			out[k] = val
		default:
			out[k] = v
		}
	}
	return out
}

func isSealed(m map[string]any) bool {
	enc, _ := m["enc"].(string)
	_, hasNonce := m["nonce"]
	_, hasData := m["data"]
	return enc == sealedEncoding && hasNonce && hasData && len(m) == 3
}

func isSecretField(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	for _, m := range secretMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

func aad(field string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(field)))
}

func parseSealKey(k string) []byte {
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	switch n := len(keyBytes); {
	case n == 16 || n == 24 || n == 32:
	case n > 32:
		keyBytes = keyBytes[:32]
	case n > 24:
		keyBytes = keyBytes[:24]
	case n > 16:
		keyBytes = keyBytes[:16]
	}
	return keyBytes
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
