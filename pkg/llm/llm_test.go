package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

func TestFallbackPromptsCoverAllCategories(t *testing.T) {
	t.Parallel()
	prompts := FallbackPrompts()
	require.Len(t, prompts, len(Categories))

	seen := make(map[string]bool)
	for _, p := range prompts {
		seen[p.Category] = true
		assert.NotEmpty(t, p.Prompt)
		assert.NotEmpty(t, p.Title)
	}
	for _, c := range Categories {
		assert.True(t, seen[c], c)
	}
}

func TestFallbackEvaluationFailsOpen(t *testing.T) {
	t.Parallel()
	eval := FallbackEvaluation()
	assert.True(t, eval.IsVulnerable)
	assert.Equal(t, finding.Medium, eval.Severity)
}

func TestHTTPTargetNotConfigured(t *testing.T) {
	t.Parallel()
	_, err := NewHTTPTarget("")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPTargetCall(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"output":"I cannot help with that."}`))
	}))
	defer srv.Close()

	target, err := NewHTTPTarget(srv.URL)
	require.NoError(t, err)
	target.Client = srv.Client()

	out, err := target.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "I cannot help with that.", out)
}

func TestHTTPTargetCallNonJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain refusal"))
	}))
	defer srv.Close()

	target, err := NewHTTPTarget(srv.URL)
	require.NoError(t, err)
	target.Client = srv.Client()

	out, err := target.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "plain refusal", out)
}

// stubTarget answers every prompt with a fixed response.
type stubTarget struct {
	response string
	err      error
	calls    int
}

func (s *stubTarget) Call(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.response, s.err
}

// stubGenerator scripts both interface methods.
type stubGenerator struct {
	prompts []AttackPrompt
	genErr  error
	eval    Evaluation
	evalErr error
}

func (s *stubGenerator) GeneratePrompts(context.Context) ([]AttackPrompt, error) {
	return s.prompts, s.genErr
}

func (s *stubGenerator) Evaluate(context.Context, AttackPrompt, string) (Evaluation, error) {
	return s.eval, s.evalErr
}

func TestRedteamNilGeneratorFailsOpen(t *testing.T) {
	t.Parallel()
	target := &stubTarget{response: "Sure! Here is how to..."}
	vulns := NewRedteam(nil).Run(context.Background(), target)

	// Without an evaluator every answered prompt is flagged for review.
	require.Len(t, vulns, len(FallbackPrompts()))
	assert.Equal(t, len(FallbackPrompts()), target.calls)
	for _, v := range vulns {
		assert.Equal(t, finding.Medium, v.Severity)
		assert.True(t, len(v.Type) > len("llm_"))
	}
}

func TestRedteamGeneratorCleanVerdicts(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{
		eval: Evaluation{IsVulnerable: false, Severity: finding.Low},
	}
	vulns := NewRedteam(gen).Run(context.Background(), &stubTarget{response: "I refuse."})
	assert.Empty(t, vulns)
}

func TestRedteamEvaluationErrorFallsOpen(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{evalErr: errors.New("evaluator down")}
	vulns := NewRedteam(gen).Run(context.Background(), &stubTarget{response: "response"})
	require.Len(t, vulns, len(FallbackPrompts()))
	assert.Equal(t, finding.Medium, vulns[0].Severity)
}

func TestRedteamGenerationErrorUsesBuiltins(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{
		genErr: errors.New("no quota"),
		eval:   Evaluation{IsVulnerable: true, Severity: finding.High, Description: "leaked"},
	}
	vulns := NewRedteam(gen).Run(context.Background(), &stubTarget{response: "my system prompt is..."})
	require.Len(t, vulns, len(FallbackPrompts()))
	assert.Equal(t, finding.High, vulns[0].Severity)
}

func TestRedteamTargetErrorSkipsPrompt(t *testing.T) {
	t.Parallel()
	target := &stubTarget{err: errors.New("connection refused")}
	vulns := NewRedteam(nil).Run(context.Background(), target)
	assert.Empty(t, vulns)
}

func TestCategorySlug(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "prompt_injection", categorySlug("Prompt Injection"))
	assert.Equal(t, "jailbreak", categorySlug("Jailbreak"))
}
