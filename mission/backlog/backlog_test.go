package backlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	items map[string]string
}

func newFakeSource() *fakeSource { return &fakeSource{items: map[string]string{}} }

func (f *fakeSource) Store(_ context.Context, _, key, value string) error {
	f.items[key] = value
	return nil
}

func (f *fakeSource) Search(context.Context, string, string, int) ([]string, error) {
	out := make([]string, 0, len(f.items))
	for _, v := range f.items {
		out = append(out, v)
	}
	return out, nil
}

func TestParseFormatRoundTrip(t *testing.T) {
	item := Item{Title: "Add OAuth login", Priority: PriorityHigh}
	parsed := Parse(item.Format())
	assert.Equal(t, item, parsed)
}

func TestParse_NoPrefixDefaultsMedium(t *testing.T) {
	item := Parse("Refactor billing module")
	assert.Equal(t, PriorityMedium, item.Priority)
	assert.Equal(t, "Refactor billing module", item.Title)
}

func TestTop_SortsByPriority(t *testing.T) {
	src := newFakeSource()
	ctx := context.Background()
	require.NoError(t, Add(ctx, src, "proj-1", Item{Title: "low one", Priority: PriorityLow}))
	require.NoError(t, Add(ctx, src, "proj-1", Item{Title: "high one", Priority: PriorityHigh}))
	require.NoError(t, Add(ctx, src, "proj-1", Item{Title: "medium one", Priority: PriorityMedium}))

	items, err := Top(ctx, src, "proj-1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, PriorityHigh, items[0].Priority)
}
