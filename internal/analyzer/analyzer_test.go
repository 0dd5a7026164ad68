package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wirestate/internal/ast"
	"wirestate/internal/cache"
	"wirestate/internal/errs"
	"wirestate/internal/source"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newDeps(dir string) Deps {
	return Deps{Reader: source.NewReader(), SearchDirs: []string{dir}, Cache: cache.New()}
}

func TestCompile_SingleFile(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "light.wst", "@machine light\n\tred*\n\t\tgo -> green\n\tgreen\n\t\tstop -> red\n")

	result, err := Compile(root, "light.wst", newDeps(dir))
	require.NoError(t, err)

	fut, ok := result.Cache.Lookup("light.wst")
	require.True(t, ok)
	scope, err := fut.Result()
	require.NoError(t, err)
	assert.Len(t, scope.Machines, 1)
}

func TestCompile_CrossFileInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "door.wst", "@machine door\n\topen*\n\t\tclose -> shut\n\tshut\n")
	root := writeFile(t, dir, "main.wst", "@include \"door.wst\"\n@machine house\n\tidle*\n")

	result, err := Compile(root, "main.wst", newDeps(dir))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"main.wst", "door.wst"}, result.Cache.Keys())
}

func TestCompile_ImportCycleDoesNotDeadlock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wst", "@include \"b.wst\"\n@machine a\n\tworking\n\t\t@use b\n")
	root := writeFile(t, dir, "b.wst", "@include \"a.wst\"\n@machine b\n\tworking\n\t\t@use a\n")

	result, err := Compile(root, "b.wst", newDeps(dir))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.wst", "a.wst"}, result.Cache.Keys())
}

func TestCompile_DuplicateMachineIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "dup.wst", "@machine m\n\ta\n@machine m\n\tb\n")

	_, err := Compile(root, "dup.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "duplicate machine id")
}

func TestCompile_UnresolvedTransitionIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\ta\n\t\tgo -> nowhere\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "unresolved transition target")
}

func TestCompile_MissingIncludeIsNotFoundError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@include \"missing.wst\"\n@machine m\n\ta\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var nf *errs.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.wst", nf.Logical)
}

func TestCompile_UseResolvesAcrossImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub.wst", "@machine sub\n\ta\n")
	root := writeFile(t, dir, "main.wst", "@include \"sub.wst\"\n@machine main\n\tworking\n\t\t@use sub\n")

	result, err := Compile(root, "main.wst", newDeps(dir))
	require.NoError(t, err)

	fut, ok := result.Cache.Lookup("main.wst")
	require.True(t, ok)
	scope, err := fut.Result()
	require.NoError(t, err)

	state := scope.Machines[0].States[0]
	require.NotNil(t, state.Use)
	require.NotNil(t, state.Use.Resolved)
	assert.Equal(t, "sub", state.Use.Resolved.ID)
}

func TestCompile_FirstChildDefaultsToInitial(t *testing.T) {
	// A container whose children carry no explicit initial marker defaults
	// its first child to initial and leaves the rest non-initial (§4.4).
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\ta\n\tb\n")

	result, err := Compile(root, "m.wst", newDeps(dir))
	require.NoError(t, err)

	fut, _ := result.Cache.Lookup("m.wst")
	scope, _ := fut.Result()
	assert.True(t, scope.Machines[0].States[0].Initial)
	assert.False(t, scope.Machines[0].States[1].Initial)
}

func TestCompile_AtomicWithChildrenIsRewrittenCompound(t *testing.T) {
	// S2: "A*\n  B\nC" -- A has a child B and only the initial marker (no
	// kind marker), so the analyzer rewrites its kind from the parser's
	// default atomic to compound (§4.4's state-kind normalization rule) and
	// defaults B to initial.
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\tA*\n\t\tB\n\tC\n")

	result, err := Compile(root, "m.wst", newDeps(dir))
	require.NoError(t, err)

	fut, _ := result.Cache.Lookup("m.wst")
	scope, _ := fut.Result()
	a := scope.Machines[0].States[0]
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, ast.KindCompound, a.Kind)
	assert.True(t, a.Initial)
	assert.True(t, a.States[0].Initial)
}

func TestCompile_DuplicateTransitionEventIsSemanticError(t *testing.T) {
	// S3: "A*\n  x -> B\n  x -> B\nB" -- the second transition for the same
	// event collides with the first.
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\tA*\n\t\tx -> B\n\t\tx -> B\n\tB\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "duplicate transition for event")
}

func TestCompile_NormalizedDuplicateTransitionEventIsSemanticError(t *testing.T) {
	// S4: "A*\n  x,y -> B\n  y, x -> B\nB" -- the events normalize equal
	// (split/trim/sort/join) even though the raw text differs.
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\tA*\n\t\tx,y -> B\n\t\ty, x -> B\n\tB\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "duplicate transition for event")
}

func TestCompile_DuplicateEventProtocolIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\tA*\n\t\t@on ping\n\t\t@on ping\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "duplicate event protocol for event")
}

func TestCompile_MultipleInitialChildrenIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\ta*\n\tb*\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "multiple initial children")
}

func TestCompile_TransientWithChildrenIsSemanticError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "m.wst", "@machine m\n\ta?\n\t\tb\n")

	_, err := Compile(root, "m.wst", newDeps(dir))
	require.Error(t, err)
	var semErr *errs.SemanticError
	require.ErrorAs(t, err, &semErr)
	assert.Contains(t, semErr.Message, "cannot have children")
}
