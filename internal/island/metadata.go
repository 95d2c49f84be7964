package island

import (
	"bytes"
	"encoding/json"

	"github.com/conneroisu/isle/internal/errors"
)

// ComponentMetadata identifies a rendered island and the props it was
// rendered with.
type ComponentMetadata struct {
	Path  string `json:"path"`
	Props any    `json:"props"`
	Name  string `json:"name,omitempty"`
}

// DecodeProps unmarshals the props of decoded metadata into v.
func (m ComponentMetadata) DecodeProps(v any) error {
	raw, err := json.Marshal(m.Props)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type wireMetadata struct {
	Path  string          `json:"path"`
	Props json.RawMessage `json:"props"`
	Name  string          `json:"name,omitempty"`
}

// EncodeMetadata returns m as JSON that is safe inside an HTML comment or
// script element: `<`, `>`, `&`, U+2028 and U+2029 become \u escapes and
// every `/` becomes `\/`.
func EncodeMetadata(m ComponentMetadata) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(m); err != nil {
		return "", errors.NewEncodingError(m.Path, err)
	}
	return string(escapeSlashes(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))), nil
}

// DecodeMetadata parses an encoded metadata payload. Props are kept as raw
// JSON, so encoding the result reproduces the payload exactly.
func DecodeMetadata(payload string) (ComponentMetadata, error) {
	var w wireMetadata
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return ComponentMetadata{}, errors.NewEncodingError("", err).WithContext("payload", payload)
	}
	if w.Props == nil {
		w.Props = json.RawMessage("null")
	}
	return ComponentMetadata{Path: w.Path, Props: w.Props, Name: w.Name}, nil
}

// escapeSlashes rewrites every unescaped `/` in JSON text to `\/`.
func escapeSlashes(b []byte) []byte {
	out := make([]byte, 0, len(b)+8)
	escaped := false
	for _, c := range b {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '/':
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return out
}
