package format

import (
	"bytes"
	"testing"
)

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, map[string]int{"id": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "{\"id\":1}\n" {
		t.Fatalf("unexpected compact output %q", got)
	}

	buf.Reset()
	if err := (JSONFormatter{Indent: "  "}).Write(&buf, map[string]int{"id": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "{\n  \"id\": 1\n}\n" {
		t.Fatalf("unexpected indented output %q", got)
	}
}

func TestFieldsFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (FieldsFormatter{}).Write(&buf, []Field{
		{Key: "id", Value: "7"},
		{Key: "title", Value: "trip"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "id:    7\ntitle: trip\n"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	buf.Reset()
	if err := (FieldsFormatter{}).Write(&buf, "plain"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "plain\n" {
		t.Fatalf("unexpected fallback output %q", buf.String())
	}
}
