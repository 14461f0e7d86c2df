package sitelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
)

func TestParsePlainList(t *testing.T) {
	input := "\uFEFF# distractions\n" +
		"example.com\n" +
		"\n" +
		"  *.reddit.com/*   # inline comment\n" +
		"\t\n" +
		"example.com\n"

	got, err := ParsePlainList(strings.NewReader(input), log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "*.reddit.com/*", "example.com"}, got)
}

func TestParsePlainList_Empty(t *testing.T) {
	got, err := ParsePlainList(strings.NewReader("# nothing here\n\n"), log.NewNoopLogger())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseYAMLList(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"sequence", "- a.com\n- '*.b.com/*'\n", []string{"a.com", "*.b.com/*"}},
		{"mapping", "sites:\n  - a.com\n  - ' '\n  - c.com\n", []string{"a.com", "c.com"}},
		{"mapping without sites", "other: 1\n", []string{}},
		{"empty document", "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseYAMLList(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseYAMLList_Errors(t *testing.T) {
	_, err := ParseYAMLList(strings.NewReader("sites: [a.com"))
	assert.Error(t, err)

	_, err = ParseYAMLList(strings.NewReader("just a scalar"))
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "sites.txt")
	yml := filepath.Join(dir, "sites.YML")
	require.NoError(t, os.WriteFile(plain, []byte("a.com\nb.com\n"), 0o600))
	require.NoError(t, os.WriteFile(yml, []byte("sites: [c.com]\n"), 0o600))

	got, err := ParseFile(plain, log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, got)

	got, err = ParseFile(yml, log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"c.com"}, got)

	_, err = ParseFile(filepath.Join(dir, "missing.txt"), log.NewNoopLogger())
	assert.Error(t, err)
}
