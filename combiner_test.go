package bundlez

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCombineBytes_SeparatorAfterEveryFile(t *testing.T) {
	out := CombineBytes([][]byte{[]byte("a"), []byte("b")}, nil, nil)
	if string(out) != "a;b;" {
		t.Errorf("expected 'a;b;', got %q", out)
	}
}

func TestCombineBytes_Empty(t *testing.T) {
	if out := CombineBytes(nil, nil, nil); len(out) != 0 {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestCombineBytes_PrependersAndAppenders(t *testing.T) {
	prepend := []func() string{func() string { return "/*p1*/" }, func() string { return "/*p2*/" }}
	appendFns := []func() string{func() string { return "/*a*/" }}

	out := CombineBytes([][]byte{[]byte("x")}, prepend, appendFns)
	if string(out) != "/*p1*//*p2*/x;/*a*/" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCombine_Streams(t *testing.T) {
	var buf bytes.Buffer
	inputs := []io.Reader{strings.NewReader("one"), strings.NewReader("two")}

	if err := Combine(&buf, inputs, nil, nil); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if buf.String() != "one;two;" {
		t.Errorf("expected 'one;two;', got %q", buf.String())
	}
}

func TestCompileContext_Combine(t *testing.T) {
	cc := NewCompileContext("site", JS, false, nil)
	cc.AddPrepender(func() string { return "(function(){" })
	cc.AddAppender(func() string { return "})();" })

	out := cc.Combine([]TransformedFile{{Content: "var a"}, {Content: "var b"}})
	if string(out) != "(function(){var a;var b;})();" {
		t.Errorf("unexpected output %q", out)
	}
}
