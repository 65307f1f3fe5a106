package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EventSubjects(t *testing.T) {
	productID, storeID := uuid.New(), uuid.New()
	ctx := context.Background()

	assert.Equal(t, "catalog.products.stores.added", NewStoreAddedToProduct(ctx, productID, storeID).Subject())
	assert.Equal(t, "catalog.products.stores.removed", NewStoreRemovedFromProduct(ctx, productID, storeID).Subject())
	assert.Equal(t, "catalog.products.stores.replaced", NewProductStoresReplaced(ctx, productID, nil).Subject())
}

func Test_EventPayload(t *testing.T) {
	// given
	productID, storeID := uuid.New(), uuid.New()
	event := NewStoreAddedToProduct(context.Background(), productID, storeID)

	// when
	payload, err := event.Payload()

	// then
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, productID.String(), decoded["product_id"])
	assert.Equal(t, []any{storeID.String()}, decoded["store_ids"])
	assert.Contains(t, decoded, "occurred_at")
}

func Test_ReplacedEventWithoutStores(t *testing.T) {
	payload, err := NewProductStoresReplaced(context.Background(), uuid.New(), nil).Payload()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, []any{}, decoded["store_ids"])
}
