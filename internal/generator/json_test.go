package generator

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wirestate/internal/analyzer"
	"wirestate/internal/cache"
	"wirestate/internal/source"
)

func compileFixture(t *testing.T) *analyzer.Result {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "door.wst"), []byte("@machine door\n\topen*\n\t\tclose -> shut\n\tshut\n"), 0o644))
	root := filepath.Join(dir, "main.wst")
	require.NoError(t, os.WriteFile(root, []byte("@include \"door.wst\"\n@machine house\n\tidle*\n\t\tgo -> house.idle\n"), 0o644))

	result, err := analyzer.Compile(root, "main.wst", analyzer.Deps{
		Reader:     source.NewReader(),
		SearchDirs: []string{dir},
		Cache:      cache.New(),
	})
	require.NoError(t, err)
	return result
}

func TestJSONGenerator_Generate_IsValidJSONWithExpectedKeys(t *testing.T) {
	result := compileFixture(t)
	var buf bytes.Buffer
	require.NoError(t, (&jsonGenerator{}).Generate(&buf, result, Options{}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "main.wst")
	assert.Contains(t, decoded, "door.wst")
}

func TestJSONGenerator_Generate_PreservesInsertionKeyOrder(t *testing.T) {
	result := compileFixture(t)
	var buf bytes.Buffer
	require.NoError(t, (&jsonGenerator{}).Generate(&buf, result, Options{}))

	firstMain := bytes.Index(buf.Bytes(), []byte(`"main.wst"`))
	firstDoor := bytes.Index(buf.Bytes(), []byte(`"door.wst"`))
	require.True(t, firstMain >= 0 && firstDoor >= 0)
	assert.Less(t, firstMain, firstDoor, "main.wst was registered before door.wst")
}

func TestJSONGenerator_Generate_TransitionEventsNormalized(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "m.wst")
	require.NoError(t, os.WriteFile(root, []byte("@machine m\n\ta*\n\t\tzeta,alpha -> b\n\tb\n"), 0o644))

	result, err := analyzer.Compile(root, "m.wst", analyzer.Deps{
		Reader:     source.NewReader(),
		SearchDirs: []string{dir},
		Cache:      cache.New(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, (&jsonGenerator{}).Generate(&buf, result, Options{}))
	assert.Contains(t, buf.String(), `"event":"alpha,zeta"`)
}

func TestOrderedScopes_MarshalJSON_EmptyIsEmptyObject(t *testing.T) {
	var entries orderedScopes
	b, err := entries.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}
