package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusIndexed, StatusTriagedExtractable},
		{StatusIndexed, StatusTriagedMaybe},
		{StatusIndexed, StatusTriagedNoData},
		{StatusTriagedExtractable, StatusExtractedRaw},
		{StatusExtractedRaw, StatusValidatedOK},
		{StatusExtractedRaw, StatusNeedsReview},
		{StatusNeedsReview, StatusExtractedRaw},
		{StatusNeedsReview, StatusRejected},
		{StatusValidatedOK, StatusApproved},
		{StatusValidatedOK, StatusRejected},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to Status }{
		{StatusIndexed, StatusExtractedRaw},
		{StatusIndexed, StatusApproved},
		{StatusTriagedMaybe, StatusExtractedRaw},
		{StatusTriagedNoData, StatusIndexed},
		{StatusValidatedOK, StatusExtractedRaw},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusIndexed},
		{StatusExtractedRaw, StatusApproved},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusRejected, StatusTriagedMaybe, StatusTriagedNoData} {
		assert.True(t, s.IsTerminal(), string(s))
	}
	for _, s := range []Status{StatusIndexed, StatusTriagedExtractable, StatusExtractedRaw, StatusValidatedOK, StatusNeedsReview} {
		assert.False(t, s.IsTerminal(), string(s))
	}
}
