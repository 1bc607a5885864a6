package core

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/huangsam/apigrade/schema"
)

// supportedMethods lists the HTTP methods the executor knows how to issue.
var supportedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// LoadDocument parses an OpenAPI document (YAML or JSON) from a file path.
func LoadDocument(ctx context.Context, path string) (*openapi3.T, error) {
	loader := newLoader(ctx)
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %q: %v", ErrInvalidSpecification, path, err)
	}
	return doc, nil
}

// LoadDocumentData parses an OpenAPI document (YAML or JSON) from memory.
func LoadDocumentData(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := newLoader(ctx)
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse document: %v", ErrInvalidSpecification, err)
	}
	return doc, nil
}

func newLoader(ctx context.Context) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = false
	return loader
}

// BuildCatalog converts a parsed document into a catalog keyed by operation id.
// It performs no I/O; building twice from the same document yields equal catalogs.
func BuildCatalog(doc *openapi3.T) (schema.Catalog, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrInvalidSpecification)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("%w: document has no paths", ErrInvalidSpecification)
	}

	pathItems := doc.Paths.Map()
	paths := make([]string, 0, len(pathItems))
	for p := range pathItems {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	catalog := make(schema.Catalog)
	var unnamed []schema.OperationTemplate
	for _, path := range paths {
		item := pathItems[path]
		if item == nil {
			continue
		}
		if err := checkUnknownMethods(path, item); err != nil {
			return nil, err
		}

		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		slices.Sort(methods)

		for _, method := range methods {
			if _, ok := supportedMethods[method]; !ok {
				return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedMethod, method, path)
			}
			tmpl := buildTemplate(path, method, item, ops[method])
			if tmpl.ID == "" {
				unnamed = append(unnamed, tmpl)
				continue
			}
			if existing, dup := catalog[tmpl.ID]; dup {
				return nil, fmt.Errorf("%w: %q used by %s %s and %s %s",
					ErrDuplicateOperationID, tmpl.ID, existing.Method, existing.PathPattern, method, path)
			}
			catalog[tmpl.ID] = tmpl
		}
	}

	// Derived ids never clash with declared ones; a later clash gets a numeric suffix.
	for _, tmpl := range unnamed {
		base := fallbackOperationID(tmpl.Method, tmpl.PathPattern)
		tmpl.ID = base
		for n := 2; ; n++ {
			if _, taken := catalog[tmpl.ID]; !taken {
				break
			}
			tmpl.ID = fmt.Sprintf("%s_%d", base, n)
		}
		catalog[tmpl.ID] = tmpl
	}

	return catalog, nil
}

// checkUnknownMethods rejects path item keys that are neither known fields nor extensions.
// The loader keeps such keys in the Extensions map.
func checkUnknownMethods(path string, item *openapi3.PathItem) error {
	keys := make([]string, 0, len(item.Extensions))
	for k := range item.Extensions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, "x-") {
			continue
		}
		return fmt.Errorf("%w: %s %s", ErrUnsupportedMethod, strings.ToUpper(k), path)
	}
	return nil
}

func buildTemplate(path, method string, item *openapi3.PathItem, op *openapi3.Operation) schema.OperationTemplate {
	tmpl := schema.OperationTemplate{
		ID:          op.OperationID,
		Method:      method,
		PathPattern: path,
		Summary:     op.Summary,
	}

	// Operation-level parameters override path-level ones with the same name and location.
	params := make([]schema.ParamSpec, 0, len(item.Parameters)+len(op.Parameters))
	seen := make(map[string]int)
	for _, refs := range []openapi3.Parameters{item.Parameters, op.Parameters} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			loc, ok := paramLocation(ref.Value.In)
			if !ok {
				continue
			}
			spec := schema.ParamSpec{Name: ref.Value.Name, In: loc, Required: ref.Value.Required}
			key := string(loc) + ":" + spec.Name
			if i, exists := seen[key]; exists {
				params[i] = spec
				continue
			}
			seen[key] = len(params)
			params = append(params, spec)
		}
	}
	if len(params) > 0 {
		tmpl.Parameters = params
	}

	locs := make(map[schema.ParamLocation]struct{})
	for _, p := range params {
		locs[p.In] = struct{}{}
	}
	if len(tmpl.Placeholders()) > 0 {
		locs[schema.PathParam] = struct{}{}
	}
	if op.RequestBody != nil {
		tmpl.HasBody = true
		locs[schema.BodyParam] = struct{}{}
		if op.RequestBody.Value != nil {
			tmpl.BodyRequired = op.RequestBody.Value.Required
		}
	}

	tmpl.ParamLocations = make([]schema.ParamLocation, 0, len(locs))
	for loc := range locs {
		tmpl.ParamLocations = append(tmpl.ParamLocations, loc)
	}
	slices.Sort(tmpl.ParamLocations)

	return tmpl
}

func paramLocation(in string) (schema.ParamLocation, bool) {
	switch in {
	case openapi3.ParameterInQuery:
		return schema.QueryParam, true
	case openapi3.ParameterInPath:
		return schema.PathParam, true
	case openapi3.ParameterInHeader:
		return schema.HeaderParam, true
	default:
		return "", false
	}
}

// fallbackOperationID derives a stable id from method and path. Placeholders
// are marked with "by", e.g. GET /api/files/{filename} becomes
// get_api_files_by_filename while GET /api/files/filename stays get_api_files_filename.
func fallbackOperationID(method, path string) string {
	parts := []string{strings.ToLower(method)}
	for _, segment := range strings.Split(path, "/") {
		if name, ok := strings.CutPrefix(segment, "{"); ok {
			if name, ok = strings.CutSuffix(name, "}"); ok {
				if word := sanitizeSegment(name); word != "" {
					parts = append(parts, "by", word)
				}
				continue
			}
		}
		if word := sanitizeSegment(segment); word != "" {
			parts = append(parts, word)
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "root")
	}
	return strings.Join(parts, "_")
}

// sanitizeSegment lowercases s and joins its alphanumeric runs with underscores.
func sanitizeSegment(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	return strings.Join(words, "_")
}
