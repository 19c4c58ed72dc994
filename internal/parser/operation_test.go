package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func annotationsFrom(t *testing.T, lines ...string) []Annotation {
	t.Helper()
	anns := make([]Annotation, 0, len(lines))
	for _, line := range lines {
		ann, ok := ParseAnnotation(line)
		require.True(t, ok, "not an annotation: %s", line)
		anns = append(anns, ann)
	}
	return anns
}

func TestNormalizeMimeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"json", "application/json"},
		{"JSON", "application/json"},
		{"xml", "application/xml"},
		{"plain", "text/plain"},
		{"text", "text/plain"},
		{"html", "text/html"},
		{"form-data", "multipart/form-data"},
		{"multipart", "multipart/form-data"},
		{"urlencoded", "application/x-www-form-urlencoded"},
		{"binary", "application/octet-stream"},
		{"application/pdf", "application/pdf"},
		{"msgpack", "application/msgpack"},
	}
	for _, tt := range tests {
		if got := normalizeMimeType(tt.in); got != tt.want {
			t.Errorf("normalizeMimeType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseParameterPathInt(t *testing.T) {
	param, err := New(nil).parseParameter(`id path int true "User ID"`)
	require.NoError(t, err)

	assert.Equal(t, "id", param.Name)
	assert.Equal(t, "path", param.In)
	assert.True(t, param.Required)
	assert.Equal(t, "User ID", param.Description)
	require.NotNil(t, param.Schema)
	assert.Equal(t, "integer", param.Schema.Type)
}

func TestParseParameterForms(t *testing.T) {
	p := New(nil)

	t.Run("object reference", func(t *testing.T) {
		param, err := p.parseParameter(`payload body {object CreateRequest} true "payload"`)
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/CreateRequest", param.Schema.Ref)
	})

	t.Run("array reference", func(t *testing.T) {
		param, err := p.parseParameter(`items body {array Item} true "items"`)
		require.NoError(t, err)
		assert.Equal(t, "array", param.Schema.Type)
		assert.Equal(t, "#/components/schemas/Item", param.Schema.Items.Ref)
	})

	t.Run("primitive array", func(t *testing.T) {
		param, err := p.parseParameter(`ids query []int false "ids"`)
		require.NoError(t, err)
		assert.Equal(t, "array", param.Schema.Type)
		assert.Equal(t, "integer", param.Schema.Items.Type)
	})

	t.Run("qualified type", func(t *testing.T) {
		param, err := p.parseParameter(`user body model.User true "user"`)
		require.NoError(t, err)
		assert.Equal(t, "#/components/schemas/model.User", param.Schema.Ref)
	})

	t.Run("attributes", func(t *testing.T) {
		param, err := p.parseParameter(`sort query string false "sort order" Format(uuid) Enums(asc,desc) Default(asc) Example(desc)`)
		require.NoError(t, err)
		assert.Equal(t, "uuid", param.Schema.Format)
		assert.Equal(t, []any{"asc", "desc"}, param.Schema.Enum)
		assert.Equal(t, "asc", param.Schema.Default)
		assert.Equal(t, "desc", param.Example)
	})

	t.Run("inline example", func(t *testing.T) {
		param, err := p.parseParameter(`filter query string false "filter" {example="active"}`)
		require.NoError(t, err)
		assert.Equal(t, "active", param.Example)
	})

	t.Run("too few tokens", func(t *testing.T) {
		_, err := p.parseParameter(`id path int`)
		require.Error(t, err)
	})
}

func TestParseResponseObjectRef(t *testing.T) {
	resp, err := New(nil).parseResponse(`200 {object} User "OK"`)
	require.NoError(t, err)

	assert.Equal(t, "200", resp.Code)
	assert.Equal(t, "OK", resp.Description)
	mt := resp.Content["application/json"]
	require.NotNil(t, mt)
	assert.Equal(t, "#/components/schemas/User", mt.Schema.Ref)
}

func TestParseResponseForms(t *testing.T) {
	p := New(nil)

	t.Run("array marker", func(t *testing.T) {
		resp, err := p.parseResponse(`200 {array} Pet "all pets"`)
		require.NoError(t, err)
		mt := resp.Content["application/json"]
		assert.Equal(t, "array", mt.Schema.Type)
		assert.Equal(t, "#/components/schemas/Pet", mt.Schema.Items.Ref)
	})

	t.Run("description before marker", func(t *testing.T) {
		resp, err := p.parseResponse(`404 not found {object} response.OpenApiErrorNonSnap`)
		require.NoError(t, err)
		assert.Equal(t, "not found", resp.Description)
		assert.Equal(t, "#/components/schemas/response.OpenApiErrorNonSnap", resp.Content["application/json"].Schema.Ref)
	})

	t.Run("description only", func(t *testing.T) {
		resp, err := p.parseResponse(`204 no content`)
		require.NoError(t, err)
		assert.Equal(t, "no content", resp.Description)
		assert.Empty(t, resp.Content)
	})

	t.Run("marker without type name", func(t *testing.T) {
		resp, err := p.parseResponse(`200 "OK" {object}`)
		require.NoError(t, err)
		assert.Equal(t, "OK", resp.Description)
		assert.Empty(t, resp.Content)
	})

	t.Run("default code", func(t *testing.T) {
		resp, err := p.parseResponse(`default {object} Error "unexpected"`)
		require.NoError(t, err)
		assert.Equal(t, "default", resp.Code)
	})

	t.Run("inline example", func(t *testing.T) {
		resp, err := p.parseResponse(`200 {object} User "OK" {example={"id":1}}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": float64(1)}, resp.Content["application/json"].Example)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := p.parseResponse(`   `)
		require.Error(t, err)
	})
}

func TestBuildOperationSynthesizesID(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Summary Get user`,
		`// @Success 200 {object} User "OK"`,
		`// @Router /users/{id} [get]`,
	)

	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)

	assert.Equal(t, "/users/{id}", parsed.Path)
	assert.Equal(t, "get", parsed.Method)
	assert.Equal(t, "get_users_{id}", parsed.Operation.OperationID)
}

func TestBuildOperationExplicitID(t *testing.T) {
	anns := annotationsFrom(t,
		`// @id fetchUser`,
		`// @Router /users/{id} [get]`,
	)
	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)
	assert.Equal(t, "fetchUser", parsed.Operation.OperationID)
}

func TestBuildOperationBodyParameterFoldsIntoRequestBody(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Accept json`,
		`// @Param request body AdoptionRequest true "Adoption request"`,
		`// @Success 201 {object} Pet "Created"`,
		`// @Router /adoptions [post]`,
	)
	examples := map[string]map[string]any{
		"AdoptionRequest": {"petId": float64(7)},
	}

	parsed, err := New(nil).buildOperation(anns, examples)
	require.NoError(t, err)

	op := parsed.Operation
	assert.Empty(t, op.Parameters, "body parameters must not reach parameters")
	require.NotNil(t, op.RequestBody)
	mt := op.RequestBody.Content["application/json"]
	require.NotNil(t, mt)
	assert.Equal(t, "#/components/schemas/AdoptionRequest", mt.Schema.Ref)
	assert.Equal(t, examples["AdoptionRequest"], mt.Example)
}

func TestBuildOperationDeprecatedRouter(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Success 200 "OK"`,
		`// @DeprecatedRouter /legacy [get]`,
	)
	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)
	assert.True(t, parsed.Operation.Deprecated)
}

func TestBuildOperationProduceDefaulting(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Produce xml`,
		`// @Success 204 "no content"`,
		`// @Router /things [delete]`,
	)
	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)

	resp := parsed.Operation.Responses["204"]
	require.NotNil(t, resp)
	_, ok := resp.Content["application/xml"]
	assert.True(t, ok, "empty response should take the first produce type")
}

func TestBuildOperationResponseExampleFromStruct(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Success 200 {object} Pet "OK"`,
		`// @Router /pets/{id} [get]`,
	)
	examples := map[string]map[string]any{"Pet": {"name": "Rex"}}

	parsed, err := New(nil).buildOperation(anns, examples)
	require.NoError(t, err)
	mt := parsed.Operation.Responses["200"].Content["application/json"]
	assert.Equal(t, examples["Pet"], mt.Example)
}

func TestBuildOperationMalformedParameterSkipped(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Param broken query`,
		`// @Param ok query string false "fine"`,
		`// @Router /x [get]`,
	)
	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)
	require.Len(t, parsed.Operation.Parameters, 1)
	assert.Equal(t, "ok", parsed.Operation.Parameters[0].Name)
}

func TestBuildOperationNoRouter(t *testing.T) {
	anns := annotationsFrom(t, `// @Summary lonely`)
	_, err := New(nil).buildOperation(anns, nil)
	require.Error(t, err)
}

func TestBuildOperationTagsAndSecurity(t *testing.T) {
	anns := annotationsFrom(t,
		`// @Tags pets, admin`,
		`// @Security BearerAuth read write`,
		`// @Router /pets [post]`,
	)
	parsed, err := New(nil).buildOperation(anns, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pets", "admin"}, parsed.Operation.Tags)
	require.Len(t, parsed.Operation.Security, 1)
	assert.Equal(t, []string{"read", "write"}, parsed.Operation.Security[0]["BearerAuth"])
}
