package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jmlago/parlo/internal/metrics"
)

type fakeClassifier struct {
	calls    atomic.Int32
	complete bool
	err      error
}

func (f *fakeClassifier) Classify(context.Context, string) (bool, error) {
	f.calls.Add(1)
	return f.complete, f.err
}

func TestEvaluateHeuristics(t *testing.T) {
	t.Parallel()

	g := New(Config{})

	cases := []struct {
		name       string
		transcript string
		verdict    Verdict
		reason     string
	}{
		{"empty", "   ", VerdictIncomplete, "empty"},
		{"terminal period", "let's meet tomorrow afternoon.", VerdictComplete, "terminal-punctuation"},
		{"question mark", "what time does the market open?", VerdictComplete, "terminal-punctuation"},
		{"exclamation", "that was a great result!", VerdictComplete, "terminal-punctuation"},
		{"stop phrase", "please draft the reply, that's all", VerdictComplete, "stop-phrase"},
		{"stop phrase with punctuation", "go ahead and send it.", VerdictComplete, "stop-phrase"},
		{"too short", "hello there", VerdictIncomplete, "below-min-words"},
		{"abbreviation period", "we should invite dr.", VerdictIncomplete, "no-classifier"},
		{"no punctuation", "i was thinking that we could", VerdictIncomplete, "no-classifier"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := g.Evaluate(context.Background(), tc.transcript)
			require.Equal(t, tc.verdict, result.Verdict)
			require.Equal(t, tc.reason, result.Reason)
		})
	}
}

func TestEvaluateUsesClassifierVerdict(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{complete: true}
	g := New(Config{Classifier: classifier})

	result := g.Evaluate(context.Background(), "so about the quarterly numbers")
	require.Equal(t, VerdictComplete, result.Verdict)
	require.Equal(t, "classifier", result.Reason)

	classifier.complete = false
	result = g.Evaluate(context.Background(), "and then another thing about")
	require.Equal(t, VerdictIncomplete, result.Verdict)
}

func TestEvaluateCachesPerTranscript(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{complete: false}
	m := metrics.New()
	g := New(Config{Classifier: classifier, Metrics: m})

	const transcript = "thinking about the garden layout"
	first := g.Evaluate(context.Background(), transcript)
	second := g.Evaluate(context.Background(), transcript)
	third := g.Evaluate(context.Background(), "Thinking about the  garden layout")

	require.Equal(t, first, second)
	require.Equal(t, first, third, "normalization folds case and whitespace")
	require.Equal(t, int32(1), classifier.calls.Load(), "at most one external call per wording")
	require.Equal(t, float64(2), testutil.ToFloat64(m.ClassifierCacheHits))

	g.Reset()
	g.Evaluate(context.Background(), transcript)
	require.Equal(t, int32(2), classifier.calls.Load(), "reset clears cached verdicts")
}

func TestEvaluatePunctuatedFormNotServedFromUnpunctuatedCache(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{complete: false}
	g := New(Config{Classifier: classifier})

	first := g.Evaluate(context.Background(), "hello there right now")
	require.Equal(t, VerdictIncomplete, first.Verdict)
	require.Equal(t, "classifier", first.Reason)

	second := g.Evaluate(context.Background(), "hello there right now.")
	require.Equal(t, VerdictComplete, second.Verdict)
	require.Equal(t, "terminal-punctuation", second.Reason)
	require.Equal(t, int32(1), classifier.calls.Load(), "punctuated form never reaches the classifier")
}

func TestCacheHitMetricCountsClassifierVerdictsOnly(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{complete: false}
	m := metrics.New()
	g := New(Config{Classifier: classifier, Metrics: m})

	g.Evaluate(context.Background(), "we are finished here.")
	g.Evaluate(context.Background(), "we are finished here.")
	require.Equal(t, float64(0), testutil.ToFloat64(m.ClassifierCacheHits), "heuristic verdicts are not classifier cache hits")

	g.Evaluate(context.Background(), "thinking about something else")
	g.Evaluate(context.Background(), "thinking about something else")
	require.Equal(t, float64(1), testutil.ToFloat64(m.ClassifierCacheHits))
}

func TestEvaluateDegradesToCompleteAfterRetries(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{err: errors.New("backend down")}
	m := metrics.New()
	g := New(Config{
		Classifier:   classifier,
		RetryLimit:   3,
		RetryBackoff: time.Millisecond,
		Metrics:      m,
	})

	result := g.Evaluate(context.Background(), "tell me about the weather tomorrow")
	require.Equal(t, VerdictComplete, result.Verdict)
	require.Equal(t, "classifier-unavailable", result.Reason)
	require.Equal(t, int32(3), classifier.calls.Load())
	require.Equal(t, float64(3), testutil.ToFloat64(m.ClassifierCalls))
}

func TestEndsWithTerminalPunctuation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text     string
		terminal bool
	}{
		{"", false},
		{"no punctuation here", false},
		{"done now.", true},
		{"done now!  ", true},
		{"really?", true},
		{"bring flour, sugar, etc.", false},
		{"ask dr.", false},
		{"we flew to the u.s.", false},
		{"the temperature hit 98.", true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.terminal, endsWithTerminalPunctuation(tc.text), "text %q", tc.text)
	}
}
