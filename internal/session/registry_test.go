package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/ledgererr"
	"github.com/arcsign/ledgerkit/internal/model"
)

func TestFinalize_OnlyAppliesOnce(t *testing.T) {
	r := New(NewMemoryStore())
	sess, err := r.Start("acct-1")
	require.NoError(t, err)

	err = r.Finalize(sess.ID, model.SessionCompleted, 10, 2, "", nil, nil)
	require.NoError(t, err)

	err = r.Finalize(sess.ID, model.SessionFailed, 0, 0, "too late", nil, nil)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.CodeInvariantViolation))

	got, err := r.store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status, "the second finalize must not have overwritten the first")
	assert.Equal(t, 10, got.TransactionsImported)
}

func TestFinalize_RejectsUnknownSession(t *testing.T) {
	r := New(NewMemoryStore())
	err := r.Finalize("missing", model.SessionCompleted, 0, 0, "", nil, nil)
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.CodeNotFound))
}

func TestFindLatestIncomplete_SkipsTerminalSessions(t *testing.T) {
	r := New(NewMemoryStore())

	first, err := r.Start("acct-1")
	require.NoError(t, err)
	require.NoError(t, r.Finalize(first.ID, model.SessionCompleted, 5, 0, "", nil, nil))

	second, err := r.Start("acct-1")
	require.NoError(t, err)

	incomplete, err := r.FindLatestIncomplete("acct-1")
	require.NoError(t, err)
	require.NotNil(t, incomplete)
	assert.Equal(t, second.ID, incomplete.ID)
}

func TestFindLatestIncomplete_NilWhenNoneOutstanding(t *testing.T) {
	r := New(NewMemoryStore())
	sess, err := r.Start("acct-1")
	require.NoError(t, err)
	require.NoError(t, r.Finalize(sess.ID, model.SessionCancelled, 0, 0, "", nil, nil))

	incomplete, err := r.FindLatestIncomplete("acct-1")
	require.NoError(t, err)
	assert.Nil(t, incomplete)
}
