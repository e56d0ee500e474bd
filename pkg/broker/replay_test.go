package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayBrokerListFills(t *testing.T) {
	t.Parallel()
	b := NewReplayBroker()
	now := time.Now()

	b.PushFills(
		Fill{FillID: "old", FilledAt: now.Add(-2 * time.Hour)},
		Fill{FillID: "recent", FilledAt: now.Add(-10 * time.Minute)},
	)

	fills, err := b.ListFills(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "recent", fills[0].FillID)
}

func TestReplayBrokerQuotes(t *testing.T) {
	t.Parallel()
	b := NewReplayBroker()

	_, err := b.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrQuoteNotFound)

	b.SetQuote("AAPL", 231.5)
	quote, err := b.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 231.5, quote.Last)
}
