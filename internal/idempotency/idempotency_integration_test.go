//go:build integration

package idempotency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/idempotency"
	"github.com/zayar/simplecashflow/internal/testutil"
)

func TestRunExecutesAtMostOnce(t *testing.T) {
	f := testutil.SetupCompany(t)
	store := idempotency.NewStore(f.Pool)
	ctx := context.Background()

	calls := 0
	build := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]string{"invoice": "inv-1"}, nil
	}

	fp := idempotency.Fingerprint(f.Company.ID, "POST /invoices", []byte(`{"total":1000}`))

	first, err := store.Run(ctx, f.Company.ID, "key-1", fp, build)
	require.NoError(t, err)
	assert.False(t, first.Replay)
	assert.Equal(t, 1, calls)

	// Same key, same fingerprint: stored response, no second execution.
	second, err := store.Run(ctx, f.Company.ID, "key-1", fp, build)
	require.NoError(t, err)
	assert.True(t, second.Replay)
	assert.JSONEq(t, string(first.Response), string(second.Response))
	assert.Equal(t, 1, calls)

	// Same key, different body: conflict.
	other := idempotency.Fingerprint(f.Company.ID, "POST /invoices", []byte(`{"total":2000}`))
	_, err = store.Run(ctx, f.Company.ID, "key-1", other, build)
	assert.True(t, apierror.IsKind(err, apierror.KindIdempotencyConflict))
	assert.Equal(t, 1, calls)

	// Another tenant may reuse the key freely.
	other2 := testutil.SetupCompany(t)
	result, err := idempotency.NewStore(other2.Pool).Run(ctx, other2.Company.ID, "key-1", fp, build)
	require.NoError(t, err)
	assert.False(t, result.Replay)
	assert.Equal(t, 2, calls)
}

func TestRunRollsBackRecordOnBuildFailure(t *testing.T) {
	f := testutil.SetupCompany(t)
	store := idempotency.NewStore(f.Pool)
	ctx := context.Background()

	fp := idempotency.Fingerprint(f.Company.ID, "POST /x", nil)
	_, err := store.Run(ctx, f.Company.ID, "key-err", fp, func(ctx context.Context) (interface{}, error) {
		return nil, apierror.New(apierror.KindValidation, "bad input")
	})
	require.Error(t, err)

	// The failure left no record; a retry executes the build again.
	result, err := store.Run(ctx, f.Company.ID, "key-err", fp, func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, result.Replay)
}

func TestRunRequiresKey(t *testing.T) {
	f := testutil.SetupCompany(t)
	store := idempotency.NewStore(f.Pool)

	_, err := store.Run(context.Background(), f.Company.ID, "", "fp", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}
