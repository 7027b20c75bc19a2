package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesAreComplete(t *testing.T) {
	require.NoError(t, Validate())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Locale
		wantErr bool
	}{
		{"en", English, false},
		{"RU", Russian, false},
		{" ky ", Kyrgyz, false},
		{"de", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOr(t *testing.T) {
	l, err := ParseOr("", Russian)
	require.NoError(t, err)
	assert.Equal(t, Russian, l)

	_, err = ParseOr("fr", Russian)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Кодекс о детях", DisplayName("01aug2020_kidscode.pdf", Russian))
	assert.Equal(t, "Жер кодекси", DisplayName("landcode.pdf", Kyrgyz))
	assert.Equal(t, "Labour Code", DisplayName("10jul2025_labourcode.pdf", Locale("xx")))
	assert.Equal(t, "unknown.pdf", DisplayName("unknown.pdf", English))
}

func TestForFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, For(English), For(Locale("xx")))
	assert.NotEqual(t, For(English).NotFound, For(Kyrgyz).NotFound)
}

func TestKnownDocumentsSorted(t *testing.T) {
	docs := KnownDocuments()
	require.Len(t, docs, 19)
	assert.IsNonDecreasing(t, docs)
}
