package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantSchema string
		wantURL    string
		wantErr    bool
	}{
		{
			name:    "plain url",
			raw:     "postgres://u:p@localhost:5432/crm?sslmode=disable",
			wantURL: "postgres://u:p@localhost:5432/crm?sslmode=disable",
		},
		{
			name:       "schema param is stripped",
			raw:        "postgres://u:p@localhost:5432/crm?schema=dev_crm&sslmode=disable",
			wantSchema: "dev_crm",
			wantURL:    "postgres://u:p@localhost:5432/crm?sslmode=disable",
		},
		{
			name:       "search_path alias",
			raw:        "postgresql://u:p@localhost/crm?search_path=sandbox",
			wantSchema: "sandbox",
			wantURL:    "postgresql://u:p@localhost/crm",
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "wrong scheme", raw: "mysql://u:p@localhost/crm", wantErr: true},
		{name: "unsafe schema", raw: "postgres://u:p@localhost/crm?schema=Dev-Crm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDescriptor(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSchema, got.Schema)
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantSchema != "", got.Scoped())
		})
	}
}

func TestDescriptorIdentity(t *testing.T) {
	a, err := ParseDescriptor("postgres://u:p@LocalHost/crm")
	require.NoError(t, err)
	b, err := ParseDescriptor("postgres://x:y@127.0.0.1:5432/crm?schema=public")
	require.NoError(t, err)
	c, err := ParseDescriptor("postgres://x:y@127.0.0.1:5432/crm?schema=dev_crm")
	require.NoError(t, err)

	idA, err := a.Identity()
	require.NoError(t, err)
	idB, err := b.Identity()
	require.NoError(t, err)
	idC, err := c.Identity()
	require.NoError(t, err)

	assert.Equal(t, idA, idB)
	assert.NotEqual(t, idA, idC)
	assert.Equal(t, "127.0.0.1:5432/crm#public", idA.String())
}

func TestMaskConnectionString(t *testing.T) {
	assert.Equal(t, "postgres://u:****@h:5432/crm", MaskConnectionString("postgres://u:secret@h:5432/crm"))
	assert.Equal(t, "postgres://h:5432/crm", MaskConnectionString("postgres://h:5432/crm"))
}

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"customers", "affiliate_aes", "dev_crm2", "_x"} {
		assert.True(t, ValidIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "Customers", "a-b", "a;b", "a b"} {
		assert.False(t, ValidIdentifier(bad), bad)
	}
}
