package spec

import (
	"reflect"
	"testing"
)

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"canonical untouched", "#/components/schemas/User", "#/components/schemas/User"},
		{"missing hash", "/components/schemas/User", "#/components/schemas/User"},
		{"bare name", "User", "#/components/schemas/User"},
		{"qualified bare name", "model.User", "#/components/schemas/model.User"},
		{"external json", "shared/common.json", "shared/common.json"},
		{"external yaml", "shared/defs.yaml", "shared/defs.yaml"},
		{"other path takes last segment", "#/definitions/User", "#/components/schemas/User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRef(tt.in); got != tt.want {
				t.Errorf("NormalizeRef(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeRefIdempotent(t *testing.T) {
	inputs := []string{"User", "/components/schemas/User", "#/definitions/Pet", "ext.yaml"}
	for _, in := range inputs {
		once := NormalizeRef(in)
		if twice := NormalizeRef(once); twice != once {
			t.Errorf("NormalizeRef not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestRefName(t *testing.T) {
	if got := RefName("#/components/schemas/User"); got != "User" {
		t.Errorf("RefName = %q, want User", got)
	}
	if got := RefName("other.yaml"); got != "" {
		t.Errorf("RefName on external ref = %q, want empty", got)
	}
}

func TestNormalizeDocumentClosesRegistry(t *testing.T) {
	doc := &Document{
		Paths: map[string]*PathItem{
			"/users": {
				Get: &Operation{
					Responses: map[string]*Response{
						"200": {
							Description: "OK",
							Content: map[string]*MediaType{
								"application/json": {Schema: &Schema{Ref: "User"}},
							},
						},
					},
				},
			},
		},
	}

	NormalizeDocument(doc)

	got := doc.Paths["/users"].Get.Responses["200"].Content["application/json"].Schema.Ref
	if got != "#/components/schemas/User" {
		t.Fatalf("ref not normalized: %q", got)
	}
	placeholder, ok := doc.Components.Schemas["User"]
	if !ok {
		t.Fatal("missing placeholder for dangling ref")
	}
	if placeholder.Type != "object" {
		t.Errorf("placeholder type = %q, want object", placeholder.Type)
	}
}

func TestNormalizeDocumentIdempotent(t *testing.T) {
	build := func() *Document {
		return &Document{
			Paths: map[string]*PathItem{
				"/pets": {
					Get: &Operation{
						Responses: map[string]*Response{
							"200": {Content: map[string]*MediaType{
								"application/json": {Schema: &Schema{
									Type:  "array",
									Items: &Schema{Ref: "pkg.Pet"},
								}},
							}},
						},
					},
				},
			},
		}
	}

	once := build()
	NormalizeDocument(once)
	twice := build()
	NormalizeDocument(twice)
	NormalizeDocument(twice)

	if !reflect.DeepEqual(once, twice) {
		t.Error("NormalizeDocument is not idempotent")
	}
}

func TestNormalizeDocumentKeepsExistingSchemas(t *testing.T) {
	user := &Schema{Type: "object", Properties: map[string]*Schema{"Name": {Type: "string"}}}
	doc := &Document{
		Paths: map[string]*PathItem{
			"/users": {
				Get: &Operation{
					Parameters: []Parameter{{Name: "u", In: "query", Schema: &Schema{Ref: "User"}}},
					Responses:  map[string]*Response{},
				},
			},
		},
		Components: &Components{Schemas: map[string]*Schema{"User": user}},
	}

	NormalizeDocument(doc)

	if doc.Components.Schemas["User"] != user {
		t.Error("existing schema replaced by placeholder")
	}
}
