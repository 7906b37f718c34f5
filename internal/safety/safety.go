package safety

import "github.com/rs/zerolog"

// Classifier scores how likely a stored file is to violate content policy,
// in [0, 1]. Implementations are external (typically an ML sidecar); the
// pipeline only depends on this interface so tests can substitute a stub.
type Classifier interface {
	Score(path string) (float64, error)
}

// Gate wraps a Classifier with a veto threshold. A nil Gate, a nil
// classifier or a non-positive threshold all disable the check entirely.
type Gate struct {
	classifier Classifier
	threshold  float64
	log        zerolog.Logger
}

func NewGate(c Classifier, threshold float64, log zerolog.Logger) *Gate {
	return &Gate{classifier: c, threshold: threshold, log: log}
}

// Veto reports whether the file should be rejected. Scoring failures never
// block an upload; they are logged and treated as a pass.
func (g *Gate) Veto(path string) bool {
	if g == nil || g.classifier == nil || g.threshold <= 0 {
		return false
	}
	score, err := g.classifier.Score(path)
	if err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("safety classifier failed, allowing upload")
		return false
	}
	return score >= g.threshold
}
