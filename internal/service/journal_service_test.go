package service

import (
	"context"
	"testing"

	"github.com/dushixiang/tally/internal/models"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestJournalGetEntry(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewJournalService(db, zap.NewNop())
	ctx := context.Background()

	entry := newJournalEntry("AAPL", models.DirectionLong)
	require.NoError(t, db.Create(entry).Error)

	leg := &models.OptionLeg{
		ID:         ulid.Make().String(),
		EntryID:    entry.ID,
		Underlying: "AAPL",
		Expiration: "2026-09-18",
		Strike:     230,
		OptionType: models.OptionTypeCall,
		Direction:  models.DirectionLong,
	}
	require.NoError(t, db.Create(leg).Error)

	found, err := svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)
	assert.Equal(t, "AAPL", found.Symbol)

	legs, err := svc.GetLegs(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, leg.ID, legs[0].ID)
}

func TestJournalGetEntryNotFound(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewJournalService(db, zap.NewNop())

	_, err := svc.GetEntry(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
