package brokenauth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/jsonutil"
)

// TestLoginTiming compares mean response latency for a plausible
// username ("admin") against an implausible one ("x") across several
// rounds. A large stable delta lets an attacker enumerate valid
// usernames.
func (s *Scanner) TestLoginTiming(ctx context.Context, loginURL string) []finding.Vulnerability {
	plausible := s.sampleLoginTimes(ctx, loginURL, "admin")
	implausible := s.sampleLoginTimes(ctx, loginURL, "x")
	if len(plausible) == 0 || len(implausible) == 0 {
		return nil
	}

	avgPlausible := mean(plausible)
	avgImplausible := mean(implausible)
	delta := avgPlausible - avgImplausible
	if delta < 0 {
		delta = -delta
	}
	s.logger.Debug("login timing sampled",
		slog.Duration("plausible", avgPlausible),
		slog.Duration("implausible", avgImplausible))

	if delta <= s.config.TimingDelta {
		return nil
	}

	s.config.NotifyVulnerabilityFound()
	v := finding.New("timing_attack", finding.Medium, "Login Timing Oracle")
	v.Description = "The login endpoint's response time differs measurably between existing and non-existing usernames, allowing account enumeration."
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf(
		"POST %s\nmean(admin)=%s mean(x)=%s delta=%s (threshold %s)",
		loginURL, avgPlausible.Round(time.Millisecond), avgImplausible.Round(time.Millisecond),
		delta.Round(time.Millisecond), s.config.TimingDelta))
	v.Remediation = "Perform constant-time credential checks; hash a dummy password when the user does not exist."
	v.CVSSScore = 5.0
	v.Endpoint = loginURL
	v.Method = http.MethodPost
	return []finding.Vulnerability{v}
}

func (s *Scanner) sampleLoginTimes(ctx context.Context, loginURL, username string) []time.Duration {
	var samples []time.Duration
	for i := 0; i < s.config.TimingRounds; i++ {
		if ctx.Err() != nil {
			break
		}
		body, err := jsonutil.Marshal(map[string]string{"username": username, "password": "wrong"})
		if err != nil {
			break
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(body))
		if err != nil {
			break
		}
		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
		s.applyHeaders(req)

		start := time.Now()
		resp, err := s.config.Client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			continue
		}
		iohelper.DrainAndClose(resp.Body)
		samples = append(samples, elapsed)
	}
	return samples
}

func mean(samples []time.Duration) time.Duration {
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}
