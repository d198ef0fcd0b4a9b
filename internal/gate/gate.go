// Package gate decides whether an accumulated transcript is ready to submit.
package gate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmlago/parlo/internal/metrics"
)

// Verdict is the gate's judgment of one transcript.
type Verdict string

const (
	VerdictUnknown    Verdict = "unknown"
	VerdictIncomplete Verdict = "incomplete"
	VerdictComplete   Verdict = "complete"
)

// Result pairs a verdict with the rule or backend that produced it.
type Result struct {
	Verdict Verdict
	Reason  string
}

// Classifier answers whether a transcript reads as a finished thought.
type Classifier interface {
	Classify(ctx context.Context, transcript string) (complete bool, err error)
}

// Config carries gate tuning; zero fields fall back to defaults.
type Config struct {
	Classifier   Classifier
	MinWords     int
	StopPhrases  []string
	RetryLimit   int
	RetryBackoff time.Duration
	Clock        clockwork.Clock
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

const (
	defaultMinWords     = 3
	defaultRetryLimit   = 3
	defaultRetryBackoff = 250 * time.Millisecond
)

var defaultStopPhrases = []string{"that's all", "send it", "i'm done"}

// Gate evaluates transcripts with cheap heuristics first and an external
// classifier last, caching verdicts per normalized transcript.
type Gate struct {
	classifier   Classifier
	minWords     int
	stopPhrases  []string
	retryLimit   int
	retryBackoff time.Duration
	clock        clockwork.Clock
	metrics      *metrics.Metrics
	logger       *slog.Logger

	mu    sync.Mutex
	cache map[string]Result
}

// New builds a gate; a nil classifier disables the external pass.
func New(cfg Config) *Gate {
	if cfg.MinWords <= 0 {
		cfg.MinWords = defaultMinWords
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	phrases := cfg.StopPhrases
	if phrases == nil {
		phrases = defaultStopPhrases
	}
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = normalize(phrase)
		if phrase != "" {
			normalized = append(normalized, phrase)
		}
	}

	return &Gate{
		classifier:   cfg.Classifier,
		minWords:     cfg.MinWords,
		stopPhrases:  normalized,
		retryLimit:   cfg.RetryLimit,
		retryBackoff: cfg.RetryBackoff,
		clock:        cfg.Clock,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		cache:        make(map[string]Result),
	}
}

// Evaluate judges one transcript. Identical transcripts are answered from
// cache, so the classifier is consulted at most once per wording.
func (g *Gate) Evaluate(ctx context.Context, transcript string) Result {
	key := cacheKey(transcript)
	if key == "" {
		return Result{Verdict: VerdictIncomplete, Reason: "empty"}
	}

	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		if g.metrics != nil && classifierProduced(cached.Reason) {
			g.metrics.ClassifierCacheHits.Inc()
		}
		return cached
	}
	g.mu.Unlock()

	result := g.evaluate(ctx, transcript)

	g.mu.Lock()
	g.cache[key] = result
	g.mu.Unlock()
	return result
}

// Reset clears cached verdicts; call it when a conversation turn ends.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.cache = make(map[string]Result)
	g.mu.Unlock()
}

func (g *Gate) evaluate(ctx context.Context, transcript string) Result {
	normalized := normalize(transcript)
	for _, phrase := range g.stopPhrases {
		if strings.HasSuffix(normalized, phrase) {
			return Result{Verdict: VerdictComplete, Reason: "stop-phrase"}
		}
	}

	if len(strings.Fields(normalized)) < g.minWords {
		return Result{Verdict: VerdictIncomplete, Reason: "below-min-words"}
	}

	if endsWithTerminalPunctuation(transcript) {
		return Result{Verdict: VerdictComplete, Reason: "terminal-punctuation"}
	}

	if g.classifier == nil {
		return Result{Verdict: VerdictIncomplete, Reason: "no-classifier"}
	}
	return g.classify(ctx, transcript)
}

// classify consults the external backend with bounded retries, degrading
// to a complete verdict when the backend stays unreachable. Blocking a
// finished utterance forever is worse than submitting one turn early.
func (g *Gate) classify(ctx context.Context, transcript string) Result {
	backoff := g.retryBackoff
	for attempt := 1; attempt <= g.retryLimit; attempt++ {
		if g.metrics != nil {
			g.metrics.ClassifierCalls.Inc()
		}

		complete, err := g.classifier.Classify(ctx, transcript)
		if err == nil {
			if complete {
				return Result{Verdict: VerdictComplete, Reason: "classifier"}
			}
			return Result{Verdict: VerdictIncomplete, Reason: "classifier"}
		}

		g.logWarn("classifier attempt failed", "attempt", attempt, "error", err)
		if attempt == g.retryLimit {
			break
		}

		select {
		case <-ctx.Done():
			return Result{Verdict: VerdictComplete, Reason: "classifier-unavailable"}
		case <-g.clock.After(backoff):
		}
		backoff *= 2
	}

	return Result{Verdict: VerdictComplete, Reason: "classifier-unavailable"}
}

// cacheKey folds case and whitespace but keeps punctuation, so a
// transcript and its punctuated form never share a verdict.
func cacheKey(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Join(strings.Fields(text), " ")
}

// normalize additionally strips edge punctuation for stop-phrase matching.
func normalize(text string) string {
	return strings.TrimRight(cacheKey(text), ".!?, ")
}

// classifierProduced reports whether a cached verdict came from the
// external classifier rather than a local heuristic.
func classifierProduced(reason string) bool {
	return reason == "classifier" || reason == "classifier-unavailable"
}

func (g *Gate) logWarn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
