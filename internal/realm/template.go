package realm

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Render executes a realm definition as a text template with the sprig
// function library, so realm files can pull in environment variables or
// derive values:
//
//	realm: {{ env "KCDEV_REALM" | default "dev" }}
//
// Referencing a missing key in values is an error rather than the template
// silently rendering "<no value>".
func Render(name string, src []byte, values map[string]interface{}) ([]byte, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
