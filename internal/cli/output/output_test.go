package output

import (
	"bytes"
	"strings"
	"testing"
)

type fetched struct {
	File string `json:"file" yaml:"file"`
	Body string `json:"body" yaml:"body"`
}

func (f fetched) Raw() []byte { return []byte(f.Body) }

func (f fetched) Table(wide bool) *Table {
	t := NewTable("FILE", "BYTES")
	if wide {
		t.Headers = append(t.Headers, "BODY")
		t.AddRow(f.File, "5", f.Body)
		return t
	}
	t.AddRow(f.File, "5")
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"raw", FormatRaw, false},
		{"", FormatTable, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	if _, ok := NewFormatter(FormatRaw, false).(*RawFormatter); !ok {
		t.Error("expected RawFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok {
		t.Fatal("expected TableFormatter by default")
	}
	if !tf.Wide {
		t.Error("expected Wide=true")
	}
}

func TestFormatters(t *testing.T) {
	data := fetched{File: "a.txt", Body: "hello"}

	tests := []struct {
		name   string
		format Format
		wide   bool
		want   []string
		absent []string
	}{
		{"table", FormatTable, false, []string{"FILE", "BYTES", "a.txt"}, []string{"BODY", "hello"}},
		{"wide table", FormatTable, true, []string{"BODY", "hello"}, nil},
		{"json", FormatJSON, false, []string{`"file": "a.txt"`, `"body": "hello"`}, nil},
		{"yaml", FormatYAML, false, []string{"file: a.txt", "body: hello"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(tt.format, tt.wide).Format(&buf, data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output %q missing %q", out, s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("output %q should not contain %q", out, s)
				}
			}
		})
	}
}

func TestRawFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"rawer", fetched{Body: "a\r\nb"}, "a\r\nb"},
		{"bytes", []byte{0, 1, 2}, "\x00\x01\x02"},
		{"string", "ack", "ack\n"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&RawFormatter{}).Format(&buf, tt.data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Format() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTable_Render(t *testing.T) {
	table := NewTable("NAME", "VALUE")
	table.AddRow("key1", "line1\nline2")
	table.AddRow("key2", "")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Render() produced %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "line1 line2") {
		t.Errorf("newline not flattened: %q", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("empty cell not rendered as '-': %q", lines[2])
	}
}

func TestTableFormatter_NoHeaders(t *testing.T) {
	table := NewTable("NAME")
	table.AddRow("only")

	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(buf.String(), "NAME") {
		t.Errorf("NoHeaders output contains header: %q", buf.String())
	}
}

func TestTableFormatter_Map(t *testing.T) {
	var buf bytes.Buffer
	err := (&TableFormatter{}).Format(&buf, map[string]string{"b": "2", "a": "1"})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	if strings.Index(out, "a") > strings.Index(out, "b") {
		t.Errorf("map keys not sorted:\n%s", out)
	}
}

func TestTableFormatter_FallbackJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, []int{1, 2}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "1,") {
		t.Errorf("fallback output = %q, want JSON", buf.String())
	}
}
