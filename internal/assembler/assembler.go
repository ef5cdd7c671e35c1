// Package assembler turns a frozen metadata snapshot into an OpenAPI 3.1
// document: one path operation per annotated handler and one component
// schema per registered definition.
package assembler

import (
	"errors"
	"fmt"
	"go/ast"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/dev-five-git/vespera/internal/config"
	"github.com/dev-five-git/vespera/internal/metadata"
	"github.com/dev-five-git/vespera/internal/params"
	"github.com/dev-five-git/vespera/internal/schema"
)

// Build assembles the document from the snapshot. Per-route and
// per-definition failures are gathered so one bad declaration does not hide
// the rest.
func Build(snap *metadata.Snapshot, cfg *config.Config) (*Document, error) {
	doc := &Document{
		OpenAPI: "3.1.0",
		Info: Info{
			Title:       cfg.Info.Title,
			Version:     cfg.Info.Version,
			Description: cfg.Info.Description,
		},
	}

	var errs []error
	if schemas, err := buildComponents(snap); err != nil {
		errs = append(errs, err)
	} else if len(schemas) > 0 {
		doc.Components = &Components{Schemas: schemas}
	}

	paths, err := buildPaths(snap)
	if err != nil {
		errs = append(errs, err)
	}
	doc.Paths = paths

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return doc, nil
}

// buildComponents synthesizes one named schema per registered definition.
// Generic definitions have no standalone shape and are published only at
// their instantiation sites.
func buildComponents(snap *metadata.Snapshot) (map[string]*schema.Schema, error) {
	schemas := make(map[string]*schema.Schema)
	var errs []error
	for _, def := range snap.Definitions() {
		if len(def.TypeParams) > 0 {
			continue
		}
		var s *schema.Schema
		var err error
		switch def.Kind {
		case schema.DefEnum:
			s, err = schema.FromEnum(def)
		case schema.DefUnion:
			s, err = schema.FromUnion(def, snap)
		default:
			s, err = schema.FromStruct(def, snap)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("assembler: component %s: %w", def.Name, err))
			continue
		}
		schemas[def.Name] = s
	}
	return schemas, errors.Join(errs...)
}

func buildPaths(snap *metadata.Snapshot) (map[string]*PathItem, error) {
	paths := make(map[string]*PathItem)
	var errs []error
	for _, r := range snap.Routes() {
		op, err := buildOperation(snap, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("assembler: route %s %s: %w", r.Method, r.Path, err))
			continue
		}
		template := NormalizePath(r.Path)
		item := paths[template]
		if item == nil {
			item = &PathItem{}
			paths[template] = item
		}
		if item.Operation(r.Method) != nil {
			errs = append(errs, fmt.Errorf("assembler: duplicate operation %s %s (%s)", r.Method, template, r.FuncName))
			continue
		}
		if err := item.SetOperation(r.Method, op); err != nil {
			errs = append(errs, err)
		}
	}
	return paths, errors.Join(errs...)
}

func buildOperation(snap *metadata.Snapshot, r metadata.RouteMetadata) (*Operation, error) {
	fd, err := snap.FuncDecl(r)
	if err != nil {
		return nil, err
	}
	placeholders := params.PathPlaceholders(r.Path)
	parameters, body := params.FromSignature(fd.Type, placeholders, snap)

	op := &Operation{
		Summary:     r.Summary,
		Description: r.Description,
		OperationID: r.FuncName,
		Tags:        r.Tags,
		Parameters:  parameters,
		Responses:   responses(fd.Type, snap),
	}
	if body != nil {
		op.RequestBody = &RequestBody{
			Required: true,
			Content: map[string]*MediaType{
				"application/json": {Schema: schema.TypeSchema(body, "", snap)},
			},
		}
	}
	return op, nil
}

// responses derives the success response from the handler's first
// non-error result. Handlers returning nothing but an error document an
// empty 204.
func responses(fn *ast.FuncType, snap *metadata.Snapshot) map[string]*Response {
	if fn.Results != nil {
		for _, field := range fn.Results.List {
			if id, ok := field.Type.(*ast.Ident); ok && id.Name == "error" {
				continue
			}
			return map[string]*Response{
				"200": {
					Description: "Successful response",
					Content: map[string]*MediaType{
						"application/json": {Schema: schema.TypeSchema(field.Type, "", snap)},
					},
				},
			}
		}
	}
	return map[string]*Response{
		"204": {Description: "No content"},
	}
}

// NormalizePath rewrites colon-style placeholders to the brace form the
// OpenAPI path template grammar requires. Brace placeholders pass through.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// Marshal encodes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("assembler: marshal document: %w", err)
	}
	return out, nil
}

// Validate round-trips the marshaled document through kin-openapi. The
// loader predates parts of the 3.1 grammar, so callers should treat a
// failure here as advisory.
func Validate(data []byte) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("assembler: validate: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return fmt.Errorf("assembler: validate: %w", err)
	}
	return nil
}
