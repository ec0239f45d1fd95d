package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct {
	name string
}

func (e echoTool) Name() string                       { return e.name }
func (e echoTool) Description() string                { return "echoes its argument back" }
func (e echoTool) Schema() map[string]interface{}      { return nil }
func (e echoTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	return args["msg"].(string), nil
}

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool{name: "a"}))
	require.NoError(t, r.Register(echoTool{name: "b"}))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	names := []string{}
	for _, tl := range r.List() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestRegistry_Execute_UnknownToolMessage(t *testing.T) {
	r := NewRegistry()
	out := r.Execute(context.Background(), "nope", nil)
	assert.Equal(t, "Error: unknown tool 'nope'", out)
}

func TestRegistry_Execute_RunsTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool{name: "echo"}))
	out := r.Execute(context.Background(), "echo", map[string]interface{}{"msg": "hi"})
	assert.Equal(t, "hi", out)
}

func TestRegistry_Filtered_AppliesPredicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool{name: "dev_only"}))
	require.NoError(t, r.Register(echoTool{name: "qa_only"}))

	defs := r.Filtered(Allow([]string{"dev_only"}, []string{"platform_agents"}))
	require.Len(t, defs, 1)
	assert.Equal(t, "dev_only", defs[0].Name)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/proj", ResolvePath("/proj", ""))
	assert.Equal(t, "/proj/src/main.go", ResolvePath("/proj", "src/main.go"))
	assert.Equal(t, "/abs/path", ResolvePath("/proj", "/abs/path"))
}

func TestListFilesTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	lf := ListFilesTool{ProjectPath: dir}
	out, err := lf.Execute(context.Background(), map[string]interface{}{"path": ""})
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "sub/")
}

type fakeMemory struct {
	stored map[string]string
}

func (m *fakeMemory) Store(_ context.Context, _, key, value string) error {
	if m.stored == nil {
		m.stored = make(map[string]string)
	}
	m.stored[key] = value
	return nil
}

func (m *fakeMemory) Search(_ context.Context, _, query string, _ int) ([]string, error) {
	var hits []string
	for k, v := range m.stored {
		if k == query || v == query {
			hits = append(hits, v)
		}
	}
	return hits, nil
}

func TestMemoryStoreAndSearchTools(t *testing.T) {
	mem := &fakeMemory{}
	store := MemoryStoreTool{Memory: mem, ProjectID: "proj-1"}
	out, err := store.Execute(context.Background(), map[string]interface{}{"key": "dev: decision", "value": "use postgres"})
	require.NoError(t, err)
	assert.Equal(t, "Stored.", out)

	search := MemorySearchTool{Memory: mem, ProjectID: "proj-1"}
	out, err = search.Execute(context.Background(), map[string]interface{}{"query": "dev: decision"})
	require.NoError(t, err)
	assert.Contains(t, out, "use postgres")
}

func TestMemorySearchTool_NoBackendErrors(t *testing.T) {
	search := MemorySearchTool{}
	_, err := search.Execute(context.Background(), map[string]interface{}{"query": "x"})
	assert.Error(t, err)
}
