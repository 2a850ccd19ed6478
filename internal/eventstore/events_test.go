package eventstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

func TestEventPayloads(t *testing.T) {
	started, err := NewRunStarted(testRunID, "home composting", 30, "anthropic", "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, TypeRunStarted, started.Type())
	assert.Equal(t, testRunID, started.RunID())
	assert.JSONEq(t, `{"keyword":"home composting","article_count":30,"provider":"anthropic","model":"claude-sonnet-4-20250514"}`,
		string(started.Payload()))

	progress, err := NewProgressUpdated(testRunID, 4, 40, "cluster_topics")
	require.NoError(t, err)
	assert.JSONEq(t, `{"current":4,"total":40,"stage":"cluster_topics"}`, string(progress.Payload()))

	done, err := NewRunCompleted(testRunID, 40, 3, 30, 21, 1500*time.Millisecond)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(done.Payload(), &payload))
	assert.InDelta(t, 1500, payload["duration_ms"], 0)
	assert.InDelta(t, 21, payload["placeholders"], 0)
}

func TestRunFailedCarriesCategory(t *testing.T) {
	cause := errors.ParseError("response was not valid JSON").Build()
	failed, err := NewRunFailed(testRunID, "cluster_topics", cause)
	require.NoError(t, err)

	assert.Equal(t, "parse", failed.Category)
	assert.Equal(t, "cluster_topics", failed.Stage)
	assert.Contains(t, string(failed.Payload()), "response was not valid JSON")
}
