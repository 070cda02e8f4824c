package storage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layofflens/aggregator/internal/models"
)

func TestTableEntity_RoundTrip(t *testing.T) {
	item := testItem("k1", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), 13)
	item.Type = models.TypeVideo
	item.Channel = "CNBC"
	item.Duration = "4:05"
	item.Position = 2

	raw, err := json.Marshal(toEntity(item))
	require.NoError(t, err)

	var props map[string]any
	require.NoError(t, json.Unmarshal(raw, &props))
	assert.Equal(t, "Edm.Double", props["score@odata.type"])
	assert.Equal(t, "2024-03-01T08:00:00.000Z", props["date"])
	assert.NotContains(t, props, "imageUrl")
	assert.NotContains(t, props, "companyName")

	got, err := decodeEntity(raw)
	require.NoError(t, err)
	assert.Equal(t, *item, got)
}

func TestTableEntity_DropImage(t *testing.T) {
	item := testItem("k1", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), 9)
	item.DropImage = true

	raw, err := json.Marshal(toEntity(item))
	require.NoError(t, err)

	var props map[string]any
	require.NoError(t, json.Unmarshal(raw, &props))
	require.Contains(t, props, "imageUrl", "merge must overwrite the stored image")
	assert.Equal(t, "", props["imageUrl"])

	got, err := decodeEntity(raw)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
}

func TestDecodeEntity_Defaults(t *testing.T) {
	got, err := decodeEntity([]byte(`{"PartitionKey":"news","RowKey":"x","date":"garbage","type":"news","odata.etag":"W/\"1\""}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", got.Tags)
	assert.True(t, got.Date.IsZero())

	_, err = decodeEntity([]byte(`not json`))
	assert.Error(t, err)
}

func TestHasStatus(t *testing.T) {
	conflict := &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "TableAlreadyExists"}
	assert.True(t, hasStatus(conflict, http.StatusConflict))
	assert.True(t, hasStatus(fmt.Errorf("create: %w", conflict), http.StatusConflict))
	assert.False(t, hasStatus(conflict, http.StatusNotFound))
	assert.False(t, hasStatus(nil, http.StatusNotFound))
}
