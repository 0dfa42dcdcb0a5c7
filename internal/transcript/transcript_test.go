package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pendingCount(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Pending {
			n++
		}
	}
	return n
}

func TestAppendSettledKeepsOrder(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendSettled(Counterparty, "Welcome"))
	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	require.NoError(t, tr.AppendSettled(Counterparty, "Let's meet in the middle"))

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "Welcome", snap[0].Content)
	require.Equal(t, Customer, snap[1].Speaker)
	require.Equal(t, "Let's meet in the middle", snap[2].Content)
	require.NotEmpty(t, snap[0].ID)
	require.NotEqual(t, snap[0].ID, snap[1].ID)
}

func TestAppendSettledRejectsBlank(t *testing.T) {
	tr := New()
	require.ErrorIs(t, tr.AppendSettled(Customer, "   "), ErrEmptyContent)
	require.Equal(t, 0, tr.Len())
}

func TestSinglePendingEntry(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendPending(Counterparty))
	require.True(t, tr.HasPending())
	require.ErrorIs(t, tr.AppendPending(Counterparty), ErrPendingExists)
	require.Equal(t, 1, pendingCount(tr.Snapshot()))
}

func TestResolvePendingInPlace(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	require.NoError(t, tr.AppendPending(Counterparty))
	pendingID := tr.Snapshot()[1].ID

	require.NoError(t, tr.ResolvePending("Let's meet in the middle"))
	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	require.False(t, snap[1].Pending)
	require.Equal(t, pendingID, snap[1].ID)
	require.Equal(t, "Let's meet in the middle", snap[1].Content)
	require.False(t, tr.HasPending())
}

func TestResolveWithoutPending(t *testing.T) {
	tr := New()
	require.ErrorIs(t, tr.ResolvePending("hi"), ErrNoPendingEntry)
}

func TestResolveBlankKeepsPlaceholder(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendPending(Counterparty))
	require.ErrorIs(t, tr.ResolvePending(""), ErrEmptyContent)
	require.True(t, tr.HasPending())
}

func TestDiscardPending(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	require.NoError(t, tr.AppendPending(Counterparty))

	require.True(t, tr.DiscardPending())
	require.False(t, tr.DiscardPending())
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	require.Zero(t, pendingCount(snap))

	require.NoError(t, tr.AppendPending(Counterparty))
	require.True(t, tr.HasPending())
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	snap := tr.Snapshot()
	snap[0].Content = "mutated"
	require.Equal(t, "₹800", tr.Snapshot()[0].Content)
}

func TestSettledSkipsPlaceholder(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	require.NoError(t, tr.AppendPending(Counterparty))
	require.Len(t, tr.Settled(), 1)
}

func TestChangeNotifications(t *testing.T) {
	tr := New()
	var kinds []ChangeKind
	tr.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	require.NoError(t, tr.AppendSettled(Customer, "₹800"))
	require.NoError(t, tr.AppendPending(Counterparty))
	require.NoError(t, tr.ResolvePending("ok"))
	require.NoError(t, tr.AppendPending(Counterparty))
	tr.DiscardPending()
	tr.Reset()

	require.Equal(t, []ChangeKind{
		ChangeAppended, ChangeAppended, ChangeResolved,
		ChangeAppended, ChangeDiscarded, ChangeReset,
	}, kinds)
	require.Equal(t, 0, tr.Len())
}

func TestFailedMutationsDoNotNotify(t *testing.T) {
	tr := New()
	calls := 0
	tr.OnChange(func(Change) { calls++ })
	_ = tr.ResolvePending("x")
	_ = tr.AppendSettled(Customer, "")
	tr.DiscardPending()
	require.Zero(t, calls)
}
