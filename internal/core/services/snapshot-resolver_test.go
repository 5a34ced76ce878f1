package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/testutil"
)

func TestSnapshotResolver_FallsBackToTemplate(t *testing.T) {
	repo := new(testutil.MockSnapshotRepo)
	template := testutil.ChurnTable(t)
	r := NewSnapshotResolver(repo, template, "")

	repo.On("Latest", mock.Anything, "user1").Return(nil, domain.ErrSnapshotNotFound)

	res, err := r.Resolve(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginTemplate, res.Origin)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, "customerID", res.Table.Key)

	col, _ := res.Table.Column("TotalCharges")
	assert.Equal(t, 0, col.Missing())
	assert.InDelta(t, 69.0, col.Cells[1].Num, 1e-9)

	// the shared template is untouched
	orig, _ := template.Column("TotalCharges")
	assert.Equal(t, 1, orig.Missing())
	assert.Empty(t, template.Key)
}

func TestSnapshotResolver_Uploaded(t *testing.T) {
	repo := new(testutil.MockSnapshotRepo)
	r := NewSnapshotResolver(repo, testutil.ChurnTable(t), "customerID")

	snap := &domain.Snapshot{SnapshotMeta: *meta("user1", 1), Table: testutil.ChurnTable(t)}
	repo.On("Latest", mock.Anything, "user1").Return(snap, nil)

	res, err := r.Resolve(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginUploaded, res.Origin)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "user1_table1", res.Snapshot.VersionID)
	assert.Equal(t, "customerID", res.Table.Key)
	id, _ := res.Table.Column("customerID")
	assert.Equal(t, domain.ColumnIdentifier, id.Type)
}

func TestSnapshotResolver_StoreErrorIsNotAFallback(t *testing.T) {
	repo := new(testutil.MockSnapshotRepo)
	r := NewSnapshotResolver(repo, testutil.ChurnTable(t), "")

	repo.On("Latest", mock.Anything, "user1").Return(nil, errors.Join(domain.ErrPersistence, errors.New("locked")))

	_, err := r.Resolve(context.Background(), user1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestSnapshotResolver_CoercesAndImputes(t *testing.T) {
	repo := new(testutil.MockSnapshotRepo)
	r := NewSnapshotResolver(repo, nil, "id")

	table := testutil.NewTable(t, []string{"id", "score", "mixed", "blank"}, [][]string{
		{"a", "1", "x", ""},
		{"b", "", "2", ""},
		{"c", "4", "3", ""},
		{"d", "10", "4", ""},
	})
	score, _ := table.Column("score")
	score.Type = domain.ColumnCategorical

	repo.On("Latest", mock.Anything, "user1").Return(&domain.Snapshot{SnapshotMeta: *meta("user1", 2), Table: table}, nil)

	res, err := r.Resolve(context.Background(), user1)
	require.NoError(t, err)

	got, _ := res.Table.Column("score")
	assert.True(t, got.IsNumeric())
	assert.Equal(t, 4.0, got.Cells[1].Num)
	assert.True(t, got.Cells[1].Valid)

	mixed, _ := res.Table.Column("mixed")
	assert.False(t, mixed.IsNumeric())

	blank, _ := res.Table.Column("blank")
	for _, c := range blank.Cells {
		assert.True(t, c.Valid)
		assert.Zero(t, c.Num)
	}
}

func TestSnapshotResolver_ResolveVersion(t *testing.T) {
	repo := new(testutil.MockSnapshotRepo)
	r := NewSnapshotResolver(repo, testutil.ChurnTable(t), "")

	_, err := r.ResolveVersion(context.Background(), user1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidVersion)

	repo.On("Get", mock.Anything, "user1", 7).Return(nil, domain.ErrSnapshotNotFound)
	_, err = r.ResolveVersion(context.Background(), user1, 7)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSnapshotResolver_Unauthenticated(t *testing.T) {
	r := NewSnapshotResolver(new(testutil.MockSnapshotRepo), testutil.ChurnTable(t), "")

	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
