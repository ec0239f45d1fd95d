package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/llms"
)

func TestCheckL0_AcceptsSubstantiveDevOutput(t *testing.T) {
	text := `Implemented the login handler: validates the email format, hashes the
password with bcrypt before storage, and returns a 401 with a generic
message on mismatch to avoid leaking which field was wrong. Added a unit
test covering the happy path and the mismatched-password path.`
	result := CheckL0(text, "dev", true, nil)
	assert.False(t, result.Reject)
}

func TestCheckL0_RejectsSlopAndMock(t *testing.T) {
	text := `lorem ipsum dolor sit amet. TODO: implement this properly. foo bar baz.`
	result := CheckL0(text, "dev", false, nil)
	assert.True(t, result.Reject)
	assert.GreaterOrEqual(t, result.Score, 5)
}

func TestCheckL0_RejectsBelowLengthFloorWithoutWriteTools(t *testing.T) {
	result := CheckL0("done", "arch", false, nil)
	assert.True(t, result.Reject)
	assert.Contains(t, result.Reasons[0], "length floor")
}

func TestCheckL0_LengthFloorWaivedWhenWriteToolsUsed(t *testing.T) {
	result := CheckL0("done", "arch", true, nil)
	assert.False(t, result.Reject)
}

func TestCheckL0_RejectsHallucinatedExecutionClaim(t *testing.T) {
	text := "I have deployed the service to production and tested it thoroughly end to end."
	result := CheckL0(text, "devops", false, nil)
	assert.Greater(t, result.Score, 0)
}

func TestCheckL0_RejectsEcho(t *testing.T) {
	history := []string{"line one of prior output", "line two of prior output", "line three of prior output"}
	text := "line one of prior output\nline two of prior output\nline three of prior output"
	result := CheckL0(text, "qa", true, history)
	assert.Greater(t, result.Score, 0)
}

func TestCheckL0_RejectsRepetition(t *testing.T) {
	text := "still working\nstill working\nstill working\nstill working\nstill working"
	result := CheckL0(text, "dev", true, nil)
	assert.Greater(t, result.Score, 0)
}

type fakeReviewer struct {
	content string
	err     error
}

func (f *fakeReviewer) Generate(_ context.Context, _ []llms.Message, _ []llms.ToolDefinition) (llms.Response, error) {
	if f.err != nil {
		return llms.Response{}, f.err
	}
	return llms.Response{Content: f.content}, nil
}

func (f *fakeReviewer) GenerateStreaming(_ context.Context, _ []llms.Message, _ []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, nil
}
func (f *fakeReviewer) ModelName() string    { return "fake-reviewer" }
func (f *fakeReviewer) MaxTokens() int       { return 1024 }
func (f *fakeReviewer) Temperature() float64 { return 0 }
func (f *fakeReviewer) Close() error         { return nil }

func TestCheckL1_ParsesApproveVerdict(t *testing.T) {
	reviewer := &fakeReviewer{content: `{"score": 1, "issues": [], "verdict": "APPROVE"}`}
	verdict, err := CheckL1(context.Background(), reviewer, "write a login handler", "looks solid")
	require.NoError(t, err)
	assert.False(t, verdict.Rejected())
}

func TestCheckL1_ParsesRejectVerdict(t *testing.T) {
	reviewer := &fakeReviewer{content: `some preamble text {"score": 8, "issues": ["no tests"], "verdict": "REJECT"} trailing`}
	verdict, err := CheckL1(context.Background(), reviewer, "write a login handler", "looks solid")
	require.NoError(t, err)
	assert.True(t, verdict.Rejected())
	assert.Equal(t, 8, verdict.Score)
}

func TestCheckL1_ScoreThresholdRejectsEvenWithoutExplicitVerdict(t *testing.T) {
	reviewer := &fakeReviewer{content: `{"score": 7, "issues": ["vague"], "verdict": "APPROVE"}`}
	verdict, err := CheckL1(context.Background(), reviewer, "write a login handler", "looks solid")
	require.NoError(t, err)
	assert.True(t, verdict.Rejected())
}
