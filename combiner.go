package bundlez

import (
	"bytes"
	"io"
)

// separator follows every file. Minifiers may drop a trailing statement
// terminator, and two files concatenated without one can merge statements.
var separator = []byte(";")

// Combine writes the prepender outputs, then each input followed by the
// separator, then the appender outputs. Inputs are read but never closed.
func Combine(w io.Writer, inputs []io.Reader, prependers, appenders []func() string) error {
	for _, p := range prependers {
		if _, err := io.WriteString(w, p()); err != nil {
			return err
		}
	}
	for _, in := range inputs {
		if _, err := io.Copy(w, in); err != nil {
			return err
		}
		if _, err := w.Write(separator); err != nil {
			return err
		}
	}
	for _, a := range appenders {
		if _, err := io.WriteString(w, a()); err != nil {
			return err
		}
	}
	return nil
}

// CombineBytes is Combine over in-memory contents.
func CombineBytes(contents [][]byte, prependers, appenders []func() string) []byte {
	inputs := make([]io.Reader, len(contents))
	for i, c := range contents {
		inputs[i] = bytes.NewReader(c)
	}
	var buf bytes.Buffer
	_ = Combine(&buf, inputs, prependers, appenders) //nolint:errcheck // bytes.Buffer writes do not fail
	return buf.Bytes()
}
