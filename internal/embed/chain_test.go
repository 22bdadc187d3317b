package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fleveque/listing-check/internal/model"
)

func TestChain_FallsBackInOrder(t *testing.T) {
	primary := &fakeClient{provider: "clip", model: "m1", err: errors.New("connection refused")}
	secondary := &fakeClient{provider: "openai", model: "m2"}
	calls := &fakeCallRepo{}

	chain := NewChain([]Client{primary, secondary}, 0, 1, calls, zaptest.NewLogger(t))
	res, err := chain.Embed(context.Background(), Request{Image: []byte("img"), Texts: []string{"a"}})
	require.NoError(t, err)

	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())

	require.Len(t, calls.calls, 2)
	assert.False(t, calls.calls[0].Success)
	require.NotNil(t, calls.calls[0].ErrorMessage)
	assert.Contains(t, *calls.calls[0].ErrorMessage, "connection refused")
	assert.True(t, calls.calls[1].Success)
	assert.Equal(t, model.KindImageText, calls.calls[1].Kind)
	assert.Equal(t, 2, calls.calls[1].Inputs)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain([]Client{
		&fakeClient{provider: "clip", model: "m1", err: errors.New("down")},
		&fakeClient{provider: "openai", model: "m2", err: errors.New("also down")},
	}, 0, 1, nil, zaptest.NewLogger(t))

	_, err := chain.Embed(context.Background(), Request{Texts: []string{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all embedding backends failed")
	assert.Contains(t, err.Error(), "also down")
}

func TestChain_NoClients(t *testing.T) {
	chain := NewChain(nil, 0, 1, nil, zaptest.NewLogger(t))
	_, err := chain.Embed(context.Background(), Request{Texts: []string{"a"}})
	assert.ErrorIs(t, err, ErrNoClients)
	assert.Equal(t, "", chain.ModelName())
}

func TestChain_CachedResultNotRecorded(t *testing.T) {
	inner := &fakeClient{provider: "clip", model: "m1"}
	cached := NewCachingClient(inner, newMemStore(), zaptest.NewLogger(t))
	calls := &fakeCallRepo{}
	chain := NewChain([]Client{cached}, 0, 1, calls, zaptest.NewLogger(t))

	req := Request{Texts: []string{"a", "b"}}
	for range 3 {
		_, err := chain.Embed(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Len(t, calls.calls, 1)
	assert.Equal(t, model.KindText, calls.calls[0].Kind)
}

func TestChain_FailedCallCountsOnlyUncachedInputs(t *testing.T) {
	store := newMemStore()
	image := []byte("img")
	require.NoError(t, store.Save(context.Background(),
		model.NewEmbeddingKey("m1", model.KindImage, image), []float32{1, 0}))

	inner := &fakeClient{provider: "clip", model: "m1", err: errors.New("timeout")}
	calls := &fakeCallRepo{}
	chain := NewChain([]Client{NewCachingClient(inner, store, zaptest.NewLogger(t))}, 0, 1, calls, zaptest.NewLogger(t))

	_, err := chain.Embed(context.Background(), Request{Image: image, Texts: []string{"a", "b"}})
	require.Error(t, err)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, 2, backendErr.Inputs)

	require.Len(t, inner.calls, 1)
	assert.Nil(t, inner.calls[0].Image, "cached image must not be resent")

	require.Len(t, calls.calls, 1)
	assert.False(t, calls.calls[0].Success)
	assert.Equal(t, 2, calls.calls[0].Inputs)
}

func TestChain_CanceledContextStops(t *testing.T) {
	second := &fakeClient{provider: "openai", model: "m2"}
	chain := NewChain([]Client{
		&fakeClient{provider: "clip", model: "m1", err: context.Canceled},
		second,
	}, 0, 1, nil, zaptest.NewLogger(t))

	_, err := chain.Embed(context.Background(), Request{Texts: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.callCount())
}

func TestChain_ModelNameIsPrimary(t *testing.T) {
	chain := NewChain([]Client{
		&fakeClient{provider: "clip", model: "m1"},
		&fakeClient{provider: "openai", model: "m2"},
	}, 5, 2, nil, zaptest.NewLogger(t))
	assert.Equal(t, "m1", chain.ModelName())
	assert.Equal(t, "chain", chain.ProviderName())
}
