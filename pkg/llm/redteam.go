package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// Redteam runs the attack prompt set against a target model and turns
// vulnerable verdicts into findings.
type Redteam struct {
	generator Generator
	logger    *slog.Logger
}

// NewRedteam creates a red-team runner. A nil generator means the
// built-in prompt set with fail-open evaluation.
func NewRedteam(generator Generator) *Redteam {
	return &Redteam{
		generator: generator,
		logger:    slog.Default().With(slog.String("probe", "llm")),
	}
}

// Run sends every attack prompt to the target. Evaluation errors fall
// open to the manual-review verdict, never fail the run.
func (r *Redteam) Run(ctx context.Context, target Target) []finding.Vulnerability {
	prompts := FallbackPrompts()
	if r.generator != nil {
		generated, err := r.generator.GeneratePrompts(ctx)
		if err != nil {
			r.logger.Debug("prompt generation failed, using built-in set",
				slog.String("error", err.Error()))
		} else if len(generated) > 0 {
			prompts = generated
		}
	}

	var vulns []finding.Vulnerability
	for _, attack := range prompts {
		if ctx.Err() != nil {
			break
		}
		response, err := target.Call(ctx, attack.Prompt)
		if err != nil {
			r.logger.Debug("target call inconclusive",
				slog.String("attack", attack.Title), slog.String("error", err.Error()))
			continue
		}

		eval := r.evaluate(ctx, attack, response)
		if !eval.IsVulnerable {
			continue
		}
		v := finding.New("llm_"+categorySlug(attack.Category), eval.Severity, attack.Title)
		v.Description = eval.Description
		v.ProofOfConcept = finding.ClipEvidence("Prompt: " + attack.Prompt + "\n\nResponse: " + response)
		v.Remediation = eval.Recommendation
		v.CVSSScore = eval.Severity.DefaultCVSS()
		vulns = append(vulns, v)
	}
	return vulns
}

func (r *Redteam) evaluate(ctx context.Context, attack AttackPrompt, response string) Evaluation {
	if r.generator == nil {
		return FallbackEvaluation()
	}
	eval, err := r.generator.Evaluate(ctx, attack, response)
	if err != nil {
		r.logger.Debug("evaluation failed, falling open",
			slog.String("attack", attack.Title), slog.String("error", err.Error()))
		return FallbackEvaluation()
	}
	if !eval.Severity.IsValid() {
		eval.Severity = finding.Medium
	}
	return eval
}

func categorySlug(category string) string {
	return strings.ReplaceAll(strings.ToLower(category), " ", "_")
}
