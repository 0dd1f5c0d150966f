package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"

	"github.com/vegasq/dataview/table"
)

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(&buf).Format(peopleTable(t)); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		`{"name":"alice","age":30,"score":95.5,"active":true}`,
		`{"name":"bob","age":null,"score":80,"active":false}`,
	}
	if len(lines) != len(want) {
		t.Fatalf("Format() produced %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %s, want %s", i, lines[i], want[i])
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(lines[i]), &obj); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestJSONFormatter_EscapesNames(t *testing.T) {
	var buf bytes.Buffer
	tbl := mustTable(t, table.NewColumn(`we"ird`, table.String, []interface{}{"<tag>"}))
	if err := NewJSONFormatter(&buf).Format(tbl); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var obj map[string]string
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	if obj[`we"ird`] != "<tag>" {
		t.Errorf("decoded = %v", obj)
	}
}

func TestJSONFormatter_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	f := NewJSONFormatter(&first)
	f.SetOutput(&second)

	if err := f.Format(peopleTable(t)); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if first.Len() != 0 || second.Len() == 0 {
		t.Errorf("SetOutput() did not redirect output")
	}
}

func TestMarshalRecords(t *testing.T) {
	got, err := MarshalRecords(peopleTable(t))
	if err != nil {
		t.Fatalf("MarshalRecords() error = %v", err)
	}
	want := `[{"name":"alice","age":30,"score":95.5,"active":true},{"name":"bob","age":null,"score":80,"active":false}]`
	if string(got) != want {
		t.Errorf("MarshalRecords() = %s, want %s", got, want)
	}

	empty, err := MarshalRecords(peopleTable(t).Head(0))
	if err != nil {
		t.Fatalf("MarshalRecords() error = %v", err)
	}
	if string(empty) != "[]" {
		t.Errorf("MarshalRecords(empty) = %s, want []", empty)
	}
}
