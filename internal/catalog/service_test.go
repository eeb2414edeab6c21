package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/common"
	"github.com/noah-isme/toko-bundles/internal/events"
)

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := catalog.NewService(catalog.ServiceConfig{})
	require.Error(t, err)
}

func TestResolvePrefersContainerItem(t *testing.T) {
	other := breakfast()
	other.Code = "BREAKFAST-BOX"
	other.ContainerItem = "OTHER-BOX"
	other.Price = d("99")
	f := newFixture(t, breakfast(), other)

	def, err := f.service.Resolve(context.Background(), "BREAKFAST-BOX")
	require.NoError(t, err)
	require.Equal(t, "BREAKFAST", def.Code)

	def, err = f.service.Resolve(context.Background(), "BREAKFAST")
	require.NoError(t, err)
	require.Equal(t, "BREAKFAST", def.Code)

	_, err = f.service.Resolve(context.Background(), "UNKNOWN")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetServesFromCacheUntilPut(t *testing.T) {
	f := newFixture(t, breakfast())
	ctx := context.Background()

	first, err := f.service.Get(ctx, "BREAKFAST")
	require.NoError(t, err)
	require.True(t, f.redis.Exists(catalog.CacheKey("BREAKFAST")))

	second, err := f.service.Get(ctx, "BREAKFAST")
	require.NoError(t, err)
	require.Equal(t, 1, f.store.gets)
	require.True(t, first.Price.Equal(second.Price))
	require.Len(t, second.Constituents, 2)

	updated := breakfast()
	updated.Price = d("110")
	_, err = f.service.Put(ctx, updated)
	require.NoError(t, err)
	require.False(t, f.redis.Exists(catalog.CacheKey("BREAKFAST")))

	price, err := f.service.BundlePrice(ctx, "BREAKFAST")
	require.NoError(t, err)
	require.True(t, price.Equal(d("110")))
}

func TestPutEmitsBundleUpdated(t *testing.T) {
	f := newFixture(t)
	def := breakfast()
	def.Code = "  BREAKFAST "

	warnings, err := f.service.Put(context.Background(), def)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 1, f.store.upserts)
	require.Contains(t, f.store.bundles, "BREAKFAST")

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, events.TopicBundleUpdated, f.emitter.events[0].topic)
	require.Equal(t, "BREAKFAST", f.emitter.events[0].aggregateID)
}

func TestPutRejectsMisconfiguredBundle(t *testing.T) {
	f := newFixture(t)
	def := breakfast()
	def.Price = d("0")
	def.Constituents[1].Qty = d("0")

	_, err := f.service.Put(context.Background(), def)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BUNDLE_MISCONFIGURED", appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	var cfgErr *catalog.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Len(t, cfgErr.Problems, 2)
	require.Zero(t, f.store.upserts)
	require.Empty(t, f.emitter.events)
}

func TestPutWarnsAboutEmptyBundles(t *testing.T) {
	f := newFixture(t)
	def := breakfast()
	def.Constituents = nil

	warnings, err := f.service.Put(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestQuoteAssemblesAndVerifies(t *testing.T) {
	f := newFixture(t, breakfast())

	quote, err := f.service.Quote(context.Background(), "BREAKFAST-BOX", 2)
	require.NoError(t, err)
	require.Equal(t, 2, quote.Qty)
	require.Len(t, quote.Lines, 3)
	require.Equal(t, bundle.RoleMain, quote.Lines[0].Role)
	require.True(t, quote.Summary.ExpectedTotal.Equal(d("240")))
	require.True(t, quote.Summary.MatchWithinTolerance)

	_, err = f.service.Quote(context.Background(), "BREAKFAST", 0)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}
