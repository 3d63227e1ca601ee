package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMetadata(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMetadata(t *testing.T) {
	path := writeMetadata(t, `{
		"input_name": "input_1",
		"output_name": "dense_2",
		"input_shape": [1, 224, 224, 3],
		"output_shape": [1, 3],
		"classes": ["cracked", "dirty", "good"],
		"image_size": 224
	}`)

	md, err := LoadMetadata(path)
	require.NoError(t, err)
	require.Equal(t, "input_1", md.InputName)
	require.Equal(t, "dense_2", md.OutputName)
	require.Equal(t, []string{"cracked", "dirty", "good"}, []string(md.Labels()))
}

func TestLoadMetadata_Defaults(t *testing.T) {
	md, err := LoadMetadata(writeMetadata(t, `{"classes": ["cracked", "dirty", "good"]}`))
	require.NoError(t, err)
	require.Equal(t, "input", md.InputName)
	require.Equal(t, "output", md.OutputName)
	require.Equal(t, []int64{1, 224, 224, 3}, md.InputShape)
	require.Equal(t, []int64{1, 3}, md.OutputShape)
}

func TestLoadMetadata_Invalid(t *testing.T) {
	cases := map[string]string{
		"no classes":      `{"classes": []}`,
		"class mismatch":  `{"classes": ["a", "good"], "output_shape": [1, 3]}`,
		"wrong input":     `{"classes": ["good"], "input_shape": [1, 3, 224, 224]}`,
		"not json":        `classes: [good]`,
		"duplicate class": `{"classes": ["good", "good"]}`,
		"no good class":   `{"classes": ["cracked", "dirty", "intact"]}`,
	}
	for name, body := range cases {
		_, err := LoadMetadata(writeMetadata(t, body))
		require.Error(t, err, name)
	}

	_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
