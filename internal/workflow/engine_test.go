package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogueFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func loadedEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e := NewEngine(dir, nil)
	require.NoError(t, e.Load())
	return e
}

func TestEngineLoadWithCollections(t *testing.T) {
	dir := t.TempDir()
	writeCatalogueFile(t, dir, "search-logs.yml", grepWorkflow)
	writeCatalogueFile(t, dir, "git/amend.yaml", "name: Amend\ncommand: git commit --amend --no-edit\n")
	writeCatalogueFile(t, dir, "git/collection.yml", "name: Git helpers\nauthor: ops\n")

	e := loadedEngine(t, dir)

	all := e.List(Filter{})
	require.Len(t, all, 2)
	assert.Empty(t, e.Errors())

	var amend Workflow
	for _, wf := range all {
		if wf.Name == "Amend" {
			amend = wf
		}
	}
	assert.Equal(t, "git", amend.Collection)

	cols := e.Collections()
	require.Contains(t, cols, "git")
	assert.Equal(t, "Git helpers", cols["git"].Name)
}

func TestEngineLoadIsolatesBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeCatalogueFile(t, dir, "good.yml", "name: Good\ncommand: ls\n")
	writeCatalogueFile(t, dir, "broken.yml", "name: [unclosed\n")
	writeCatalogueFile(t, dir, "undeclared.yml", "name: Bad\ncommand: \"echo {{nope}}\"\n")

	e := loadedEngine(t, dir)

	assert.Len(t, e.List(Filter{}), 1, "only the valid workflow loads")
	errs := e.Errors()
	require.Len(t, errs, 2)
	paths := []string{errs[0].Path, errs[1].Path}
	assert.ElementsMatch(t, []string{"broken.yml", "undeclared.yml"}, paths)
}

func TestEngineIDStableAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	writeCatalogueFile(t, dir, "stable.yml", "name: Stable\ncommand: pwd\n")

	e := loadedEngine(t, dir)
	first := e.List(Filter{})[0].ID
	require.NoError(t, e.Load())
	assert.Equal(t, first, e.List(Filter{})[0].ID)
}

func TestEngineListFilter(t *testing.T) {
	dir := t.TempDir()
	writeCatalogueFile(t, dir, "a.yml", "name: Docker prune\ncommand: docker system prune\ntags: [docker]\n")
	writeCatalogueFile(t, dir, "b.yml", "name: Zsh only\ncommand: setopt\nshells: [zsh]\n")

	e := loadedEngine(t, dir)

	assert.Len(t, e.List(Filter{Tag: "docker"}), 1)
	byShell := e.List(Filter{Shell: "bash"})
	require.Len(t, byShell, 1, "empty shells list permits any shell")
	assert.Equal(t, "Docker prune", byShell[0].Name)
	assert.Len(t, e.List(Filter{Query: "prune"}), 1)
	assert.Len(t, e.List(Filter{Query: "nothing"}), 0)
}

func TestResolveSubstitutesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeCatalogueFile(t, dir, "find.yml", `name: Find by name
command: "find {{dir}} -name '{{pat}}'"
arguments:
  - name: dir
    default_value: "."
  - name: pat
    required: true
`)
	e := loadedEngine(t, dir)
	wfID := e.List(Filter{})[0].ID

	cmd, err := e.Resolve(wfID, map[string]string{"pat": "*.log"})
	require.NoError(t, err)
	assert.Equal(t, "find . -name '*.log'", cmd)

	_, err = e.Resolve(wfID, nil)
	var missing *MissingArgumentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "pat", missing.Name)
}

func TestResolveRejectsInvalidBinding(t *testing.T) {
	wf, err := Parse([]byte(`name: Serve
command: "python -m http.server {{port}}"
arguments:
  - name: port
    argument_type: number
    required: true
`))
	require.NoError(t, err)

	_, err = Resolve(wf, map[string]string{"port": "eighty"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "port", verr.Name)
}

func TestResolveIsNotRecursive(t *testing.T) {
	wf, err := Parse([]byte(`name: Echo
command: "echo {{a}} {{b}}"
arguments:
  - name: a
  - name: b
`))
	require.NoError(t, err)

	// A value containing placeholder syntax is literal text, never
	// re-expanded.
	cmd, err := Resolve(wf, map[string]string{"a": "{{b}}", "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, "echo {{b}} x", cmd)
}

func TestResolveUnresolvedPlaceholder(t *testing.T) {
	wf, err := Parse([]byte(`name: Opt
command: "tail {{flags}} log"
arguments:
  - name: flags
`))
	require.NoError(t, err)

	_, err = Resolve(wf, nil)
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
}

func TestEngineSaveDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := loadedEngine(t, dir)

	wf := &Workflow{Name: "Disk usage", Command: "du -sh *"}
	require.NoError(t, e.Save(wf))
	require.NotEmpty(t, wf.ID)
	assert.FileExists(t, filepath.Join(dir, "disk-usage.yml"))

	got, err := e.Get(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "du -sh *", got.Command)

	// Saving again under the same id overwrites in place.
	wf.Command = "du -sh ."
	require.NoError(t, e.Save(wf))
	got, err = e.Get(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "du -sh .", got.Command)

	require.NoError(t, e.Delete(wf.ID))
	_, err = e.Get(wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoFileExists(t, filepath.Join(dir, "disk-usage.yml"))
}

func TestEngineSaveDetectsNameCollision(t *testing.T) {
	dir := t.TempDir()
	e := loadedEngine(t, dir)

	first := &Workflow{Name: "Deploy", Command: "make deploy"}
	require.NoError(t, e.Save(first))

	other := &Workflow{ID: "wf_other", Name: "Deploy", Command: "kubectl apply"}
	err := e.Save(other)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestEngineImportSuffixesCollidingNames(t *testing.T) {
	dir := t.TempDir()
	e := loadedEngine(t, dir)

	src := filepath.Join(t.TempDir(), "ping.yml")
	require.NoError(t, os.WriteFile(src, []byte("name: Ping\ncommand: ping -c 3 localhost\n"), 0o644))

	first, err := e.Import(src)
	require.NoError(t, err)
	second, err := e.Import(src)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.FileExists(t, filepath.Join(dir, "ping.yml"))
	assert.FileExists(t, filepath.Join(dir, "ping-1.yml"))
}

func TestEngineImportRejectsInvalidFile(t *testing.T) {
	e := loadedEngine(t, t.TempDir())

	src := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(src, []byte("command: missing name\n"), 0o644))

	_, err := e.Import(src)
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}
