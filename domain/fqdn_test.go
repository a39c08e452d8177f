package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"simple", "Example.com", "example.com", false},
		{"trailing dot", "example.com.", "example.com", false},
		{"subdomain", "api.example.com", "api.example.com", false},
		{"empty", "", "", true},
		{"bad label", "-bad.example.com", "", true},
		{"double dot", "bad..example.com", "", true},
		{"too long", string(make([]byte, 260)), "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParent(t *testing.T) {
	assert.Equal(t, "example.com", Parent("api.example.com"))
	assert.Equal(t, "example.com", Parent("a.b.example.com"))
	assert.Equal(t, "com", Parent("com"))
}

func TestIsSubtreeOf(t *testing.T) {
	assert.True(t, IsSubtreeOf("example.com", "example.com"))
	assert.True(t, IsSubtreeOf("api.example.com", "example.com"))
	assert.False(t, IsSubtreeOf("example.com.evil.com", "example.com"))
}
