package note

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

func ptr(v id.ID) *id.ID { return &v }

func TestNew_WarehouseCombinations(t *testing.T) {
	a, b := id.New(), id.New()

	tests := []struct {
		name    string
		kind    NoteKind
		origin  *id.ID
		dest    *id.ID
		wantErr bool
	}{
		{"entry needs dest", KindEntry, nil, ptr(a), false},
		{"entry without dest", KindEntry, nil, nil, true},
		{"entry rejects origin", KindEntry, ptr(a), ptr(b), true},
		{"adjustment needs dest", KindAdjustment, nil, ptr(a), false},
		{"disposal needs origin", KindDisposal, ptr(a), nil, false},
		{"disposal rejects dest", KindDisposal, ptr(a), ptr(b), true},
		{"transfer needs both", KindTransfer, ptr(a), ptr(b), false},
		{"transfer missing dest", KindTransfer, ptr(a), nil, true},
		{"transfer same warehouse", KindTransfer, ptr(a), ptr(a), true},
		{"unknown kind", NoteKind("wat"), nil, ptr(a), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.kind, tt.origin, tt.dest)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusDraft, n.Status)
		})
	}
}

func TestAddItem(t *testing.T) {
	n, err := New(KindEntry, nil, ptr(id.New()))
	require.NoError(t, err)

	typ := id.New()
	item, err := n.AddItem(typ, 5, types.Money{})
	require.NoError(t, err)
	assert.Equal(t, n.ID, item.NoteID)

	_, err = n.AddItem(typ, 2, types.Money{})
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateItem))

	_, err = n.AddItem(id.New(), 0, types.Money{})
	require.Error(t, err)
}

func TestAddItem_AdjustmentAllowsZeroCount(t *testing.T) {
	n, err := New(KindAdjustment, nil, ptr(id.New()))
	require.NoError(t, err)

	_, err = n.AddItem(id.New(), 0, types.Money{})
	require.NoError(t, err)

	_, err = n.AddItem(id.New(), -1, types.Money{})
	require.Error(t, err)
}

func TestItemEditing_RequiresDraft(t *testing.T) {
	n, err := New(KindEntry, nil, ptr(id.New()))
	require.NoError(t, err)
	item, err := n.AddItem(id.New(), 5, types.Money{})
	require.NoError(t, err)

	require.NoError(t, n.MarkConcluded(time.Now()))

	_, err = n.AddItem(id.New(), 1, types.Money{})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidNoteState))
	assert.True(t, apperror.IsCode(n.UpdateItemQuantity(item.ID, 2), apperror.CodeInvalidNoteState))
	assert.True(t, apperror.IsCode(n.RemoveItem(item.ID), apperror.CodeInvalidNoteState))
}

func TestMarkConcluded(t *testing.T) {
	n, err := New(KindEntry, nil, ptr(id.New()))
	require.NoError(t, err)

	// Empty notes cannot conclude.
	require.Error(t, n.MarkConcluded(time.Now()))

	_, err = n.AddItem(id.New(), 3, types.Money{})
	require.NoError(t, err)

	at := time.Now()
	require.NoError(t, n.MarkConcluded(at))
	assert.Equal(t, StatusConcluded, n.Status)
	require.NotNil(t, n.ConcludedAt)

	// Concluding twice is refused.
	assert.True(t, apperror.IsCode(n.MarkConcluded(at), apperror.CodeInvalidNoteState))
}

func TestMarkCancelled(t *testing.T) {
	n, err := New(KindEntry, nil, ptr(id.New()))
	require.NoError(t, err)

	require.NoError(t, n.MarkCancelled(time.Now(), "typo"))
	assert.Equal(t, StatusCancelled, n.Status)
	assert.Equal(t, "typo", n.CancelReason)

	// Terminal: cancelling again fails.
	assert.True(t, apperror.IsCode(n.MarkCancelled(time.Now(), "again"), apperror.CodeCannotCancel))
}

func TestNoteKindNumberPrefixes(t *testing.T) {
	want := map[NoteKind]string{
		KindEntry:      "ENT",
		KindTransfer:   "TRF",
		KindDisposal:   "DSC",
		KindAdjustment: "ADJ",
	}
	for kind, prefix := range want {
		assert.Equal(t, prefix, kind.NumberConfig().Prefix, "kind %s", kind)
	}
}
