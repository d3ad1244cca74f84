package consumer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/pkg/resilience"
)

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

// flakyAppender fails the first failures calls with err, then appends.
type flakyAppender struct {
	*source.Memory
	failures int
	err      error
	calls    int
}

func (f *flakyAppender) Append(ctx context.Context, rec ingestion.RawRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Memory.Append(ctx, rec)
}

func TestHandleMessageAppendsValidRecords(t *testing.T) {
	mem := source.NewMemory()
	handle := HandleMessage(mem, fastRetry, nil)
	ctx := context.Background()

	require.NoError(t, handle(ctx, []byte("r1"), []byte(`{"Title":"Economics of Trade","Year":2020}`)))
	require.NoError(t, handle(ctx, []byte("r2"), []byte(`not json`)))
	require.NoError(t, handle(ctx, []byte("r3"), []byte(`null`)))
	require.NoError(t, handle(ctx, []byte("r4"), []byte(`{"url":"https://example.org"}`)))
	require.NoError(t, handle(ctx, []byte("r5"), []byte(`{"title":"Finance Models"}`)))

	docs, err := source.Documents(ctx, mem)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Economics of Trade", docs[0].Title)
	assert.Equal(t, 1, docs[1].ID)
}

func TestHandleMessageRetriesTransientAppendFailure(t *testing.T) {
	app := &flakyAppender{Memory: source.NewMemory(), failures: 2, err: errors.New("disk busy")}
	handle := HandleMessage(app, fastRetry, nil)

	require.NoError(t, handle(context.Background(), []byte("r1"), []byte(`{"title":"Graphs"}`)))
	assert.Equal(t, 3, app.calls)
	assert.Equal(t, 1, app.Len())
}

func TestHandleMessageHaltsWhenAppendKeepsFailing(t *testing.T) {
	app := &flakyAppender{Memory: source.NewMemory(), failures: 10, err: errors.New("disk full")}
	handle := HandleMessage(app, fastRetry, nil)

	err := handle(context.Background(), []byte("r1"), []byte(`{"title":"Graphs"}`))
	assert.ErrorIs(t, err, kafka.ErrHalt)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 3, app.calls)
	assert.Zero(t, app.Len())
}

func TestHandleMessageHaltsWithoutRetryWhenSourceRejectsAppends(t *testing.T) {
	app := &flakyAppender{
		Memory:   source.NewMemory(),
		failures: 10,
		err:      apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "appending requires a .jsonl documents file"),
	}
	handle := HandleMessage(app, fastRetry, nil)

	err := handle(context.Background(), []byte("r1"), []byte(`{"title":"Graphs"}`))
	assert.ErrorIs(t, err, kafka.ErrHalt)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 1, app.calls)
}
