package foundation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

func TestProblems_Empty(t *testing.T) {
	var p Problems
	p.Require("keyword", "seo")
	assert.True(t, p.Empty())
	assert.NoError(t, p.Err(errors.CategoryValidation, "invalid request"))
}

func TestProblems_Err(t *testing.T) {
	var p Problems
	p.Require("keyword", "  ")
	p.Add("count", "must be at least %d", 1)

	err := p.Err(errors.CategoryValidation, "invalid request")
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "invalid request: keyword: is required; count: must be at least 1", ce.Message())
	assert.Equal(t, errors.CategoryValidation, ce.Category())
	assert.Len(t, p.Fields(), 2)
}
