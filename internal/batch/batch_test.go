package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

func TestRun_AggregatesWithoutShortCircuit(t *testing.T) {
	t.Parallel()

	units := []string{"products", "orders", "reviews", "sellers"}
	var visited []string
	res, err := Run(context.Background(), "copy", units, func(_ context.Context, u string) Outcome {
		visited = append(visited, u)
		switch u {
		case "products":
			return Done(u, "raw.olist_products", "done", 0)
		case "orders":
			return Done(u, "raw.olist_orders", "done", 2500)
		case "reviews":
			return Fail(u, "raw.olist_reviews", "written", 1000, errors.New("chunk 2: boom"))
		default:
			return Skip(u, "", "file not found")
		}
	})
	require.NoError(t, err)

	assert.Equal(t, units, visited)
	assert.Equal(t, 2, res.UnitsProcessed)
	assert.Equal(t, 1, res.UnitsFailed)
	assert.Equal(t, 1, res.UnitsSkipped)
	assert.Equal(t, len(units), res.Total())
	assert.EqualValues(t, 3500, res.RowsProcessed)
	assert.Equal(t, StatusPartialFailure, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Units, len(units))
}

func TestRun_EmptyIsSuccess(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "load", []int(nil), func(context.Context, int) Outcome {
		t.Fatal("fn must not be called")
		return Outcome{}
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Zero(t, res.Total())
}

func TestRun_AbortsOnConnectivity(t *testing.T) {
	t.Parallel()

	lost := fmt.Errorf("%w: connection reset", storage.ErrConnectivity)
	calls := 0
	res, err := Run(context.Background(), "copy", []int{1, 2, 3}, func(_ context.Context, u int) Outcome {
		calls++
		if u == 2 {
			return Fail("u2", "", "fetched", 0, lost)
		}
		return Done(fmt.Sprint(u), "", "done", 1)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, storage.ErrConnectivity)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, res.UnitsProcessed)
	assert.Equal(t, 1, res.UnitsFailed)
	assert.Equal(t, StatusPartialFailure, res.Status)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := Run(ctx, "copy", []int{1, 2, 3}, func(_ context.Context, u int) Outcome {
		if u == 1 {
			cancel()
		}
		return Done(fmt.Sprint(u), "", "done", 10)
	})

	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.UnitsProcessed)
	assert.EqualValues(t, 10, res.RowsProcessed)
}

func TestRun_NegativeRowsIgnored(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "copy", []int{1}, func(context.Context, int) Outcome {
		return Fail("u", "", "written", -1, errors.New("x"))
	})
	require.NoError(t, err)
	assert.Zero(t, res.RowsProcessed)
}

func TestResultJSON(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "copy", []int{1, 2}, func(_ context.Context, u int) Outcome {
		if u == 1 {
			o := Done("orders", "raw.olist_orders", "done", 3)
			o.Checksum = 0xabc
			return o
		}
		return Fail("reviews", "raw.olist_reviews", "table_replaced", 0, errors.New("create table: denied"))
	})
	require.NoError(t, err)

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.EqualValues(t, 1, got["units_processed"])
	assert.EqualValues(t, 1, got["units_failed"])
	assert.EqualValues(t, 0, got["units_skipped"])
	assert.EqualValues(t, 3, got["rows_processed"])
	assert.Equal(t, "partial_failure", got["status"])

	units := got["units"].([]any)
	first := units[0].(map[string]any)
	assert.Equal(t, "processed", first["outcome"])
	assert.Equal(t, "abc", first["checksum"])
	second := units[1].(map[string]any)
	assert.Equal(t, "failed", second["outcome"])
	assert.Equal(t, "create table: denied", second["error"])
}
