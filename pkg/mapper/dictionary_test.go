package mapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDictionary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`synonyms:
  sessions:
    - visits
    - traffic
  user_location_country:
    - market
`), 0o644))

	d, err := LoadDictionary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"visits", "traffic"}, d.Synonyms["sessions"])
	assert.Equal(t, []string{"market"}, d.Synonyms["user_location_country"])
}

func TestLoadDictionary_MissingFile(t *testing.T) {
	d, err := LoadDictionary(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, d.Synonyms)
	assert.Empty(t, d.Render())
}

func TestLoadDictionary_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synonyms: [not: a: map"), 0o644))

	_, err := LoadDictionary(path)
	assert.Error(t, err)
}

func TestDictionary_RenderStable(t *testing.T) {
	d := &Dictionary{Synonyms: map[string][]string{
		"sessions":              {"visits"},
		"user_location_country": {"market", "geo"},
	}}

	first := d.Render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Render())
	}
	assert.Contains(t, first, "sessions: also known as visits")
	assert.Contains(t, first, "user_location_country: also known as market, geo")
}
