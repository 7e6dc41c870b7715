package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/synapgo/poscache"
	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// unprocessed makes the next BatchGetItem calls defer their last key.
	unprocessed int
	batchCalls  int
	batchSizes  []int
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item[attrKey].(*types.AttributeValueMemberS).Value
}

func (m *mockDDBClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: m.items[keyOf(params.Key)]}, nil
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[keyOf(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) BatchGetItem(_ context.Context, params *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++

	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for table, ka := range params.RequestItems {
		m.batchSizes = append(m.batchSizes, len(ka.Keys))
		keys := ka.Keys
		if m.unprocessed > 0 && len(keys) > 0 {
			m.unprocessed--
			out.UnprocessedKeys[table] = types.KeysAndAttributes{Keys: keys[len(keys)-1:]}
			keys = keys[:len(keys)-1]
		}
		for _, k := range keys {
			if item, ok := m.items[keyOf(k)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func TestBackend_GetPut(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(newMockDDBClient(), "positions")

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Put(ctx, "k", []byte("rows")))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("rows"), v)
}

func TestBackend_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_000_000, 0)
	client := newMockDDBClient()
	b := NewBackend(client, "positions", WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	require.NoError(t, b.Put(ctx, "k", []byte("rows")))
	assert.Equal(t, "1003600", client.items["k"][attrExpires].(*types.AttributeValueMemberN).Value)

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := b.GetMany(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackend_GetManyChunksAndRetries(t *testing.T) {
	ctx := context.Background()
	client := newMockDDBClient()
	client.unprocessed = 1
	b := NewBackend(client, "positions")

	keys := make([]string, 0, 250)
	for i := range 250 {
		k := fmt.Sprintf("k%d", i)
		keys = append(keys, k)
		if i%2 == 0 {
			require.NoError(t, b.Put(ctx, k, []byte{byte(i)}))
		}
	}
	keys = append(keys, "k0") // duplicates are fetched once

	got, err := b.GetMany(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, 125)
	assert.Equal(t, []byte{248}, got["k248"])
	assert.Equal(t, 4, client.batchCalls, "three chunks plus one retry")
	assert.Equal(t, []int{100, 1, 100, 50}, client.batchSizes)
}

func TestBackend_GetManyGivesUp(t *testing.T) {
	client := newMockDDBClient()
	client.unprocessed = maxBatchRetries
	b := NewBackend(client, "positions")

	_, err := b.GetMany(context.Background(), []string{"a", "b"})
	assert.True(t, errors.Is(err, ErrUnprocessed))
}

func TestBackend_PositionCache(t *testing.T) {
	ctx := context.Background()
	client := newMockDDBClient()
	c := poscache.New(NewBackend(client, "positions"), poscache.WithNamespace("ds1"))

	rows, err := source.NewMatrix(source.WidePositionWidth, make([]float32, source.WidePositionWidth))
	require.NoError(t, err)

	keys := c.CreateKeys(roaring.BitmapOf(3, 4), false)
	require.NoError(t, c.SavePositions(ctx, 3, keys[0], rows))

	hits, err := c.LoadPositions(ctx, keys, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rows, hits["ds1/syn/3/e"])
	assert.Equal(t, 1, client.batchCalls)
}
