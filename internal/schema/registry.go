// Package schema проверяет детали объявлений по JSON Schema их вида.
package schema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

//go:embed kinds/*.json
var kindsFS embed.FS

// detailsField имя поля, к которому относятся ошибки деталей.
const detailsField = "details"

// Registry скомпилированные схемы по ключевому слову категории.
type Registry struct {
	schemas map[string]*jsonschema.Schema
}

// NewRegistry компилирует встроенные схемы видов объявлений.
func NewRegistry() (*Registry, error) {
	return load(kindsFS, "kinds")
}

func load(fsys fs.FS, root string) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("schema: чтение каталога %s: %w", root, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		file := path.Join(root, e.Name())
		f, err := fsys.Open(file)
		if err != nil {
			return nil, fmt.Errorf("schema: открытие %s: %w", file, err)
		}
		err = compiler.AddResource(file, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("schema: добавление %s: %w", file, err)
		}
		names = append(names, file)
	}

	r := &Registry{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, file := range names {
		s, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("schema: компиляция %s: %w", file, err)
		}
		r.schemas[strings.TrimSuffix(path.Base(file), ".json")] = s
	}
	return r, nil
}

// Kinds ключевые слова, для которых есть схема.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has сообщает, известен ли вид.
func (r *Registry) Has(kind string) bool {
	_, ok := r.schemas[kind]
	return ok
}

// Validate проверяет details по схеме вида. Ошибки возвращаются как ошибки полей details.*.
func (r *Registry) Validate(kind string, details []byte) error {
	s, ok := r.schemas[kind]
	if !ok {
		return apperror.Field("category", fmt.Sprintf("Advertisements are not supported for category keyword %q.", kind))
	}

	var v any
	if len(details) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(details, &v); err != nil {
		return apperror.Field(detailsField, "Value must be a valid JSON object.")
	}

	err := s.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema: проверка %s: %w", kind, err)
	}

	fields := make(map[string]string)
	collect(ve, fields)
	if len(fields) == 0 {
		fields[detailsField] = ve.Message
	}
	return apperror.Fields(fields)
}

// collect раскладывает листовые ошибки по путям полей.
func collect(ve *jsonschema.ValidationError, fields map[string]string) {
	if len(ve.Causes) == 0 {
		key := detailsField
		if loc := strings.Trim(ve.InstanceLocation, "/"); loc != "" {
			key += "." + strings.ReplaceAll(loc, "/", ".")
		}
		if _, exists := fields[key]; !exists {
			fields[key] = ve.Message
		}
		return
	}
	for _, c := range ve.Causes {
		collect(c, fields)
	}
}
