package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes one JSON document per payload. A non-empty Indent
// pretty-prints it.
type JSONFormatter struct {
	Indent string
}

func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(payload)
}

// Field is one "key: value" line of plain output.
type Field struct {
	Key   string
	Value string
}

// FieldsFormatter writes []Field payloads as aligned "key: value" lines and
// falls back to fmt for anything else.
type FieldsFormatter struct{}

func (FieldsFormatter) Write(w io.Writer, payload any) error {
	fields, ok := payload.([]Field)
	if !ok {
		_, err := fmt.Fprintln(w, payload)
		return err
	}

	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%-*s %s\n", width+1, f.Key+":", f.Value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
