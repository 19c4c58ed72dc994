package parser

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/openapi-extract/internal/spec"
)

func TestMapGoType(t *testing.T) {
	tests := []struct {
		in       string
		wantType string
		wantRef  string
	}{
		{"string", "string", ""},
		{"int", "integer", ""},
		{"int64", "integer", ""},
		{"uint8", "integer", ""},
		{"float32", "number", ""},
		{"float64", "number", ""},
		{"bool", "boolean", ""},
		{"*int", "integer", ""},
		{"Address", "", "#/components/schemas/Address"},
		{"model.User", "", "#/components/schemas/model.User"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := mapGoType(tt.in)
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Ref != tt.wantRef {
				t.Errorf("ref = %q, want %q", got.Ref, tt.wantRef)
			}
		})
	}

	t.Run("slice of primitives", func(t *testing.T) {
		got := mapGoType("[]string")
		require.Equal(t, "array", got.Type)
		require.NotNil(t, got.Items)
		assert.Equal(t, "string", got.Items.Type)
	})

	t.Run("slice of qualified type", func(t *testing.T) {
		got := mapGoType("[]model.Pet")
		require.Equal(t, "array", got.Type)
		assert.Equal(t, "#/components/schemas/model.Pet", got.Items.Ref)
	})
}

func writeSourceFiles(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func TestResolveSchemasStructFields(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"user.go": `package models

import (
	addr "example.com/app/address"
)

type User struct {
	ID    int
	Name  string
	Email *string
	Tags  []string
	Home  Address
}

type Address struct {
	City string
}
`,
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{"User": {}})

	user := schemas["User"]
	require.NotNil(t, user)
	assert.Equal(t, "object", user.Type)
	assert.Equal(t, "integer", user.Properties["ID"].Type)
	assert.Equal(t, "string", user.Properties["Name"].Type)
	assert.Equal(t, "string", user.Properties["Email"].Type)
	assert.Equal(t, "array", user.Properties["Tags"].Type)
	assert.Equal(t, "#/components/schemas/Address", user.Properties["Home"].Ref)

	// Pointer fields stay out of required.
	assert.Equal(t, []string{"Home", "ID", "Name", "Tags"}, user.Required)

	// Field dependency resolved on the next pass.
	address := schemas["Address"]
	require.NotNil(t, address)
	assert.Equal(t, "string", address.Properties["City"].Type)

	// Qualified key from the declaring file's import alias.
	assert.Same(t, user, schemas["addr.User"])
}

func TestResolveSchemasCollisionLastFileWins(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"a.go": `package a

type Address struct {
	City string
}
`,
		"b.go": `package b

type Address struct {
	Street string
}
`,
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{"Address": {}})

	winner := schemas["Address"]
	require.NotNil(t, winner)
	_, hasStreet := winner.Properties["Street"]
	assert.True(t, hasStreet, "bare key must hold the declaration from the lexicographically last file")
}

func TestResolveSchemasPlaceholderForUnknown(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"empty.go": "package empty\n",
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{"Ghost": {}})

	ghost := schemas["Ghost"]
	require.NotNil(t, ghost)
	assert.Equal(t, "object", ghost.Type)
	assert.Empty(t, ghost.Properties)
}

func TestResolveSchemasEnvelopesPreRegistered(t *testing.T) {
	schemas := New(nil).resolveSchemas(nil, map[string]struct{}{})

	for _, name := range envelopeSeedNames() {
		s, ok := schemas[name]
		require.True(t, ok, "missing envelope %s", name)
		assert.Equal(t, "string", s.Properties["Status"].Type)
		assert.Equal(t, "string", s.Properties["Message"].Type)
	}
	assert.Contains(t, schemas["response.ApiResponse"].Properties, "Data")
	assert.NotContains(t, schemas["response.OpenApiErrorNonSnap"].Properties, "Data")
}

func TestResolveSchemasQualifiedSeed(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"pet.go": `package models

type Pet struct {
	Name string
}
`,
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{"model.Pet": {}})

	// The declaration matches the dotted tail; both the bare and the
	// qualified key resolve to it.
	pet := schemas["Pet"]
	require.NotNil(t, pet)
	assert.Equal(t, "string", pet.Properties["Name"].Type)
	assert.Same(t, pet, schemas["model.Pet"])
}

func TestResolveSchemasQualifiedKeysBindDeclarations(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"a.go": `package pkga

type Address struct {
	City string
}
`,
		"b.go": `package pkgb

type Address struct {
	Street string
}
`,
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{
		"pkga.Address": {},
		"pkgb.Address": {},
	})

	a := schemas["pkga.Address"]
	require.NotNil(t, a)
	assert.Contains(t, a.Properties, "City",
		"qualified key must hold its package's declaration, not a placeholder")

	b := schemas["pkgb.Address"]
	require.NotNil(t, b)
	assert.Contains(t, b.Properties, "Street")
}

func TestResolveSchemasQualifiedReferenceCycleTerminates(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"m.go": `package m

type A struct {
	Peer m.B
}

type B struct {
	Peer m.A
}
`,
	})

	schemas := New(nil).resolveSchemas(files, map[string]struct{}{"A": {}})

	require.NotNil(t, schemas["A"])
	require.NotNil(t, schemas["B"])
	assert.Same(t, schemas["A"], schemas["m.A"])
	assert.Same(t, schemas["B"], schemas["m.B"])
}

func TestExtractStructExamples(t *testing.T) {
	files := writeSourceFiles(t, map[string]string{
		"pet.go": "package models\n\ntype Pet struct {\n" +
			"\tID   int    `json:\"id\" example:\"7\"`\n" +
			"\tName string `json:\"name\" example:\"Rex\"`\n" +
			"\tNote string `json:\"note\"`\n" +
			"}\n",
	})

	examples := New(nil).extractStructExamples(files, nil)

	pet := examples["Pet"]
	require.NotNil(t, pet)
	assert.Equal(t, float64(7), pet["ID"])
	assert.Equal(t, "Rex", pet["Name"])
	assert.NotContains(t, pet, "Note")
}

func TestParseExampleValue(t *testing.T) {
	assert.Equal(t, float64(42), parseExampleValue("42"))
	assert.Equal(t, true, parseExampleValue("true"))
	assert.Equal(t, "hello world", parseExampleValue("hello world"))
}

func TestOperationSchemaRefs(t *testing.T) {
	op := &spec.Operation{
		Parameters: []spec.Parameter{
			{Schema: &spec.Schema{Ref: "#/components/schemas/Filter"}},
		},
		RequestBody: &spec.RequestBody{Content: map[string]*spec.MediaType{
			"application/json": {Schema: &spec.Schema{Ref: "CreateRequest"}},
		}},
		Responses: map[string]*spec.Response{
			"200": {Content: map[string]*spec.MediaType{
				"application/json": {Schema: &spec.Schema{
					Type:  "array",
					Items: &spec.Schema{Ref: "#/components/schemas/model.Pet"},
				}},
			}},
		},
	}

	refs := make(map[string]struct{})
	operationSchemaRefs(op, refs)

	for _, want := range []string{"Filter", "CreateRequest", "model.Pet"} {
		if _, ok := refs[want]; !ok {
			t.Errorf("missing ref %s", want)
		}
	}
}
