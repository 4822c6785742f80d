package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Field is one control field of a manifest.
type Field struct {
	Name  string
	Value string
}

// Fields keeps the control fields in the order they are written in the
// manifest, which is the order they get in the control file.
type Fields []Field

// UnmarshalYAML reads a mapping of scalars.
func (f *Fields) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: control must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: control field %s must be a scalar", v.Line, k.Value)
		}
		*f = append(*f, Field{Name: k.Value, Value: trimBlock(v.Value)})
	}
	return nil
}

// UnmarshalJSON reads an object of strings or numbers.
func (f *Fields) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("control must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		switch v := v.(type) {
		case string:
			*f = append(*f, Field{Name: name, Value: trimBlock(v)})
		case json.Number:
			*f = append(*f, Field{Name: name, Value: v.String()})
		default:
			return fmt.Errorf("control field %s must be a string", name)
		}
	}
	_, err := dec.Token()
	return err
}

// trimBlock drops the final newlines a YAML block scalar carries.
func trimBlock(s string) string {
	return strings.TrimRight(s, "\n")
}
