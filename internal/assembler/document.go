package assembler

import (
	"fmt"

	"github.com/dev-five-git/vespera/internal/params"
	"github.com/dev-five-git/vespera/internal/schema"
)

// Document is the OpenAPI tree the assembler emits. It is owned here
// rather than borrowed from an OpenAPI library so 3.1 constructs like
// prefixItems and type-less oneOf survive marshaling; kin-openapi is still
// used for optional validation of the result.
type Document struct {
	OpenAPI    string               `yaml:"openapi" json:"openapi"`
	Info       Info                 `yaml:"info" json:"info"`
	Paths      map[string]*PathItem `yaml:"paths,omitempty" json:"paths,omitempty"`
	Components *Components          `yaml:"components,omitempty" json:"components,omitempty"`
}

type Info struct {
	Title       string `yaml:"title" json:"title"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type Components struct {
	Schemas map[string]*schema.Schema `yaml:"schemas,omitempty" json:"schemas,omitempty"`
}

// PathItem carries one operation slot per HTTP method.
type PathItem struct {
	Get     *Operation `yaml:"get,omitempty" json:"get,omitempty"`
	Put     *Operation `yaml:"put,omitempty" json:"put,omitempty"`
	Post    *Operation `yaml:"post,omitempty" json:"post,omitempty"`
	Delete  *Operation `yaml:"delete,omitempty" json:"delete,omitempty"`
	Options *Operation `yaml:"options,omitempty" json:"options,omitempty"`
	Head    *Operation `yaml:"head,omitempty" json:"head,omitempty"`
	Patch   *Operation `yaml:"patch,omitempty" json:"patch,omitempty"`
	Trace   *Operation `yaml:"trace,omitempty" json:"trace,omitempty"`
}

// SetOperation places an operation into its method slot. The method must
// already be validated by the scanner.
func (p *PathItem) SetOperation(method string, op *Operation) error {
	switch method {
	case "get":
		p.Get = op
	case "put":
		p.Put = op
	case "post":
		p.Post = op
	case "delete":
		p.Delete = op
	case "options":
		p.Options = op
	case "head":
		p.Head = op
	case "patch":
		p.Patch = op
	case "trace":
		p.Trace = op
	default:
		return fmt.Errorf("assembler: unknown HTTP method %q", method)
	}
	return nil
}

// Operation returns the operation in the named method slot, for tests and
// callers walking an assembled document.
func (p *PathItem) Operation(method string) *Operation {
	switch method {
	case "get":
		return p.Get
	case "put":
		return p.Put
	case "post":
		return p.Post
	case "delete":
		return p.Delete
	case "options":
		return p.Options
	case "head":
		return p.Head
	case "patch":
		return p.Patch
	case "trace":
		return p.Trace
	}
	return nil
}

type Operation struct {
	Summary     string             `yaml:"summary,omitempty" json:"summary,omitempty"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	OperationID string             `yaml:"operationId,omitempty" json:"operationId,omitempty"`
	Tags        []string           `yaml:"tags,omitempty" json:"tags,omitempty"`
	Parameters  []params.Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	RequestBody *RequestBody       `yaml:"requestBody,omitempty" json:"requestBody,omitempty"`
	Responses   map[string]*Response `yaml:"responses" json:"responses"`
}

type RequestBody struct {
	Required bool                  `yaml:"required,omitempty" json:"required,omitempty"`
	Content  map[string]*MediaType `yaml:"content" json:"content"`
}

type MediaType struct {
	Schema *schema.SchemaRef `yaml:"schema,omitempty" json:"schema,omitempty"`
}

type Response struct {
	Description string                `yaml:"description" json:"description"`
	Content     map[string]*MediaType `yaml:"content,omitempty" json:"content,omitempty"`
}
