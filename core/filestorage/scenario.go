// Package filestorage holds the OpenAPI document and scripted scenario of the
// file-storage service.
package filestorage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/schema"
)

// Name is the scenario name recorded in reports.
const Name = "file-storage"

// Fixtures used by the scenario.
const (
	TextFilename = "notes.txt"
	TextContent  = "testcontent"
	JSONFilename = "data.test.json"
	JSONContent  = `{"message": "jsondata"}`
	WrongName    = "filename2"
)

// readRetries is the number of extra attempts for read-only steps on connection errors.
const readRetries = 2

//go:embed openapi.yaml
var openapiYAML []byte

// OpenAPI returns the raw embedded document.
func OpenAPI() []byte {
	return openapiYAML
}

// Document parses the embedded OpenAPI document.
func Document(ctx context.Context) (*openapi3.T, error) {
	return core.LoadDocumentData(ctx, openapiYAML)
}

// Catalog builds the operation catalog of the embedded document.
func Catalog(ctx context.Context) (schema.Catalog, error) {
	doc, err := Document(ctx)
	if err != nil {
		return nil, err
	}
	return core.BuildCatalog(doc)
}

// EmbeddedSource names the embedded document in listings.
const EmbeddedSource = "embedded openapi.yaml"

// Suite binds the scenario to a catalog. An empty specPath uses the embedded
// document; otherwise the document at specPath is loaded and must declare
// every operation the scenario calls.
func Suite(ctx context.Context, specPath string) (core.Suite, error) {
	var (
		doc    *openapi3.T
		err    error
		source = EmbeddedSource
	)
	if specPath == "" {
		doc, err = Document(ctx)
	} else {
		doc, err = core.LoadDocument(ctx, specPath)
		source = specPath
	}
	if err != nil {
		return core.Suite{}, err
	}
	catalog, err := core.BuildCatalog(doc)
	if err != nil {
		return core.Suite{}, err
	}

	scenario := Scenario()
	for _, step := range scenario.Steps {
		if _, ok := catalog.Lookup(step.OperationID); !ok {
			return core.Suite{}, fmt.Errorf("%w: %s does not declare %q used by step %q",
				core.ErrUnknownOperation, source, step.OperationID, step.Name)
		}
	}
	return core.Suite{Scenario: scenario, Catalog: catalog, Source: source}, nil
}

// messagePresent is shared by every positive step.
var messagePresent = core.ExpectPresent("message", "Message property is required in response")

// fileFields asserts the metadata of a fetched file.
func fileFields(filename, content, extension string) core.AssertionFunc {
	return core.Assertions(
		messagePresent,
		core.ExpectPresent("filename", "filename property is required in response"),
		core.ExpectPresent("content", "content property is required in response"),
		core.ExpectPresent("extension", "extension property is required in response"),
		core.ExpectPresent("uploadedDate", "uploadedDate property is required in response"),
		core.ExpectEqual("filename", filename, "filename should equal name of the created file"),
		core.ExpectEqual("content", content, "content should equal content of created file"),
		core.ExpectEqual("extension", extension, "extension should equal extension of created file"),
	)
}

// Scenario returns the scripted file-storage run. Steps 7 to 9 are negative
// paths: their checks describe a successful response and expect it not to happen.
func Scenario() core.Scenario {
	return core.Scenario{
		Name: Name,
		Steps: []core.Step{
			{
				Name:        "create text file",
				OperationID: "createFile",
				Params:      schema.CallParams{Body: map[string]any{"filename": TextFilename, "content": TextContent}},
				Checks: []core.Check{
					{Name: "message", Weight: 20, ExpectPass: true, Assert: messagePresent},
				},
			},
			{
				Name:        "list one file",
				OperationID: "getFiles",
				Retries:     readRetries,
				Checks: []core.Check{{
					Name: "first file", Weight: 10, ExpectPass: true,
					Assert: core.Assertions(
						messagePresent,
						core.ExpectPresent("files", "Files property is required in response"),
						core.ExpectMinLen("files", 1, "Files array should contain at least one file"),
						core.ExpectListItem("files", 0, TextFilename, "Files array item should equal name of created file"),
					),
				}},
			},
			{
				Name:        "get text file",
				OperationID: "getFile",
				Params:      schema.CallParams{Path: map[string]any{"filename": TextFilename}},
				Retries:     readRetries,
				Checks: []core.Check{
					{Name: "file fields", Weight: 10, ExpectPass: true, Assert: fileFields(TextFilename, TextContent, "txt")},
				},
			},
			{
				Name:        "create json file",
				OperationID: "createFile",
				Params:      schema.CallParams{Body: map[string]any{"filename": JSONFilename, "content": JSONContent}},
				Checks: []core.Check{
					{Name: "message", Weight: 10, ExpectPass: true, Assert: messagePresent},
				},
			},
			{
				Name:        "list two files",
				OperationID: "getFiles",
				Retries:     readRetries,
				Checks: []core.Check{{
					Name: "both files", Weight: 10, ExpectPass: true,
					Assert: core.Assertions(
						messagePresent,
						core.ExpectPresent("files", "Files property is required in response"),
						core.ExpectMinLen("files", 2, "Files array should contain at least two files"),
						core.ExpectListContains("files", TextFilename, "Files array item should contain name of the first file"),
						core.ExpectListContains("files", JSONFilename, "Files array item should contain name of the second file"),
						core.ExpectLen("files", 2, "Files array should contain 2 files"),
					),
				}},
			},
			{
				Name:        "get json file",
				OperationID: "getFile",
				Params:      schema.CallParams{Path: map[string]any{"filename": JSONFilename}},
				Retries:     readRetries,
				Checks: []core.Check{
					{Name: "file fields", Weight: 10, ExpectPass: true, Assert: fileFields(JSONFilename, JSONContent, "json")},
				},
			},
			{
				Name:        "get unknown file",
				OperationID: "getFile",
				Params:      schema.CallParams{Path: map[string]any{"filename": WrongName}},
				Checks: []core.Check{{
					Name: "file returned", Weight: 10, ExpectPass: false,
					Assert: core.Assertions(
						core.ExpectStatus(200, "unknown file should not be served"),
						core.ExpectPresent("filename", "filename property is returned for an unknown file"),
						core.ExpectPresent("content", "content property is returned for an unknown file"),
					),
				}},
			},
			{
				Name:        "create without filename",
				OperationID: "createFile",
				Params:      schema.CallParams{Body: map[string]any{"content": JSONContent}},
				Checks: []core.Check{
					{Name: "created", Weight: 10, ExpectPass: false, Assert: core.ExpectStatus(200, "file without filename should be rejected")},
				},
			},
			{
				Name:        "create without content",
				OperationID: "createFile",
				Params:      schema.CallParams{Body: map[string]any{"filename": "orphan.txt"}},
				Checks: []core.Check{
					{Name: "created", Weight: 10, ExpectPass: false, Assert: core.ExpectStatus(200, "file without content should be rejected")},
				},
			},
		},
	}
}
