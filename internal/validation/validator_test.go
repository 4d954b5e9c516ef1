package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHost struct {
	Address string `yaml:"address" validate:"hostname_or_placeholder"`
}

type testPage struct {
	ID   string `yaml:"id" validate:"required"`
	Path string `yaml:"path" validate:"required,sitepath"`
	Kind string `yaml:"kind" validate:"omitempty,oneof=text menu"`
}

type testDoc struct {
	Name  string     `yaml:"name" validate:"required"`
	Hosts []testHost `yaml:"hostnames" validate:"dive"`
	Pages []testPage `yaml:"pages" validate:"min=1,dive"`
}

func TestNew(t *testing.T) {
	v := New()
	assert.NotNil(t, v)
	assert.NotNil(t, v.structValidator)
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	result := v.Validate(&testDoc{
		Name:  "main",
		Hosts: []testHost{{Address: "www.example.com"}, {Address: "10.0.0.1"}, {Address: "${env}.example.com"}},
		Pages: []testPage{{ID: "Home", Path: "/"}, {ID: "Docs", Path: "/docs/*", Kind: "text"}},
	})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	v := New()
	result := v.Validate(&testDoc{Pages: []testPage{{Path: "/"}}})
	require.False(t, result.Valid)

	fields := make(map[string]string)
	for _, e := range result.Errors {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "is required", fields["pages[0].id"])
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name  string
		doc   testDoc
		field string
	}{
		{"relative path", testDoc{Name: "s", Pages: []testPage{{ID: "a", Path: "home"}}}, "pages[0].path"},
		{"wildcard in the middle", testDoc{Name: "s", Pages: []testPage{{ID: "a", Path: "/a/*/b"}}}, "pages[0].path"},
		{"path with query", testDoc{Name: "s", Pages: []testPage{{ID: "a", Path: "/a?b"}}}, "pages[0].path"},
		{"unknown kind", testDoc{Name: "s", Pages: []testPage{{ID: "a", Path: "/", Kind: "video"}}}, "pages[0].kind"},
		{"bad hostname", testDoc{Name: "s", Hosts: []testHost{{Address: "bad host"}}, Pages: []testPage{{ID: "a", Path: "/"}}}, "hostnames[0].address"},
		{"leading hyphen", testDoc{Name: "s", Hosts: []testHost{{Address: "-x.example.com"}}, Pages: []testPage{{ID: "a", Path: "/"}}}, "hostnames[0].address"},
		{"no pages", testDoc{Name: "s"}, "pages"},
	}
	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(&tt.doc)
			require.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.field, result.Errors[0].Field)
			assert.NotEmpty(t, result.Errors[0].Message)
		})
	}
}

func TestValidationResult_Err(t *testing.T) {
	r := &ValidationResult{Valid: true}
	r.Add("pages[0].template", "references unknown template", "X")
	r.Add("hostnames[0].welcome_page", "references unknown page", "Y")

	assert.False(t, r.Valid)
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pages[0].template: references unknown template")
	assert.Contains(t, err.Error(), "hostnames[0].welcome_page")
}
