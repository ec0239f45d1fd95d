package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Memory is the minimal persistent-memory collaborator the builtin
// memory tools need: a scoped key/value store, not a vector index (spec
// §1 treats a vector/semantic memory backend as an external
// collaborator, out of this core's scope). Search's third argument is
// passed through as given; store.MemoryStore, the implementation serve
// wires in, matches it exactly against the entry category, so
// memory_search does no substring or full-text matching.
type Memory interface {
	Store(ctx context.Context, projectID, key, value string) error
	Search(ctx context.Context, projectID, query string, limit int) ([]string, error)
}

// DeepSearcher is the external web/document search collaborator
// deep_search delegates to (spec §1's "deep research" integration).
type DeepSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type listFilesArgs struct {
	Path string `json:"path" jsonschema:"description=Directory to list, relative to the project path"`
}

// ListFilesTool enumerates a project-relative directory non-recursively.
type ListFilesTool struct {
	ProjectPath string
}

func (t ListFilesTool) Name() string        { return "list_files" }
func (t ListFilesTool) Description() string { return "List files and directories at a project-relative path." }
func (t ListFilesTool) Schema() map[string]interface{} {
	return SchemaFor(&listFilesArgs{})
}

func (t ListFilesTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	rel, _ := args["path"].(string)
	dir := ResolvePath(t.ProjectPath, rel)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			b.WriteString(e.Name() + "/\n")
		} else {
			b.WriteString(e.Name() + "\n")
		}
	}
	return b.String(), nil
}

type memorySearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query against stored project memory"`
}

// MemorySearchTool searches the project memory store.
type MemorySearchTool struct {
	Memory    Memory
	ProjectID string
}

func (t MemorySearchTool) Name() string        { return "memory_search" }
func (t MemorySearchTool) Description() string { return "Search previously stored project memory for relevant context." }
func (t MemorySearchTool) Schema() map[string]interface{} {
	return SchemaFor(&memorySearchArgs{})
}

func (t MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if t.Memory == nil {
		return "", fmt.Errorf("memory_search: no memory backend configured")
	}
	hits, err := t.Memory.Search(ctx, t.ProjectID, query, 5)
	if err != nil {
		return "", fmt.Errorf("memory_search: %w", err)
	}
	if len(hits) == 0 {
		return "No matching memory entries.", nil
	}
	return strings.Join(hits, "\n---\n"), nil
}

type memoryStoreArgs struct {
	Key   string `json:"key" jsonschema:"required,description=Memory key, conventionally '<agent_name>: <flow_step>'"`
	Value string `json:"value" jsonschema:"required,description=Content to remember"`
}

// MemoryStoreTool persists a memory entry under the project scope.
type MemoryStoreTool struct {
	Memory    Memory
	ProjectID string
}

func (t MemoryStoreTool) Name() string        { return "memory_store" }
func (t MemoryStoreTool) Description() string { return "Store a decision or fact in project memory for later recall." }
func (t MemoryStoreTool) Schema() map[string]interface{} {
	return SchemaFor(&memoryStoreArgs{})
}

func (t MemoryStoreTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if t.Memory == nil {
		return "", fmt.Errorf("memory_store: no memory backend configured")
	}
	if err := t.Memory.Store(ctx, t.ProjectID, key, value); err != nil {
		return "", fmt.Errorf("memory_store: %w", err)
	}
	return "Stored.", nil
}

type deepSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Research question to investigate in depth"`
}

// DeepSearchTool delegates to an external research collaborator. The
// Agent Runtime forces tools=null for the rest of that agent turn after
// any deep_search call, so the model is forced to synthesize (spec §4.4
// step 4) rather than chain further tool calls off of raw search output.
type DeepSearchTool struct {
	Searcher DeepSearcher
}

func (t DeepSearchTool) Name() string        { return "deep_search" }
func (t DeepSearchTool) Description() string { return "Research a question in depth using an external search backend." }
func (t DeepSearchTool) Schema() map[string]interface{} {
	return SchemaFor(&deepSearchArgs{})
}

func (t DeepSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if t.Searcher == nil {
		return "", fmt.Errorf("deep_search: no search backend configured")
	}
	return t.Searcher.Search(ctx, query)
}

// ResolvePath injects projectPath for an empty/relative path, the way
// the executor resolves every file-tool argument (spec §4.4 "Tool
// execution").
func ResolvePath(projectPath, path string) string {
	if path == "" {
		return projectPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectPath, path)
}
