// Package render fills {TOKEN} placeholders in document templates.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Engine substitutes values into a template and returns the rendered bytes.
// Implementations return *RenderError for malformed templates.
type Engine interface {
	Render(template []byte, values map[string]string) ([]byte, error)
}

// TextEngine renders plain text templates.
type TextEngine struct{}

func (TextEngine) Render(template []byte, values map[string]string) ([]byte, error) {
	out, err := substitute(string(template), false, valuesLookup(values, nil))
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Registry selects an engine from a template's file extension.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry returns a registry with the docx, xlsx and plain text engines.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	r.Register(".docx", DocxEngine{})
	r.Register(".xlsx", XlsxEngine{})
	for _, ext := range []string{".txt", ".md", ".csv"} {
		r.Register(ext, TextEngine{})
	}
	return r
}

// Register binds an engine to an extension such as ".docx". Overwrites any
// existing binding.
func (r *Registry) Register(ext string, e Engine) {
	r.engines[strings.ToLower(ext)] = e
}

// For returns the engine for the template at path.
func (r *Registry) For(path string) (Engine, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.engines[ext]
	if !ok {
		return nil, fmt.Errorf("no template engine for %q files", ext)
	}
	return e, nil
}
