// Package dynamo provides a DynamoDB backend for the position cache.
//
// Table schema:
//   - Partition key: cache_key (string)
//   - rows (binary): the encoded row group
//   - expires_at (number, optional): unix seconds, for DynamoDB TTL
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name synapgo-positions \
//	  --attribute-definitions AttributeName=cache_key,AttributeType=S \
//	  --key-schema AttributeName=cache_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/synapgo/poscache"
)

const (
	attrKey     = "cache_key"
	attrRows    = "rows"
	attrExpires = "expires_at"

	// maxBatchGet is the BatchGetItem key limit.
	maxBatchGet = 100
	// maxBatchRetries bounds the rounds spent on unprocessed keys.
	maxBatchRetries = 5
)

// ErrUnprocessed is returned when DynamoDB keeps returning unprocessed keys.
var ErrUnprocessed = errors.New("dynamo: unprocessed keys remain")

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

// Options configures a Backend.
type Options struct {
	// TTL sets expires_at on written items. Zero disables expiry.
	TTL time.Duration
	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool
	// Region and Endpoint are used by New only.
	Region   string
	Endpoint string
	// Now is the clock used for TTLs.
	Now func() time.Time
}

// Option configures a Backend.
type Option func(*Options)

// WithTTL expires items after d.
func WithTTL(d time.Duration) Option {
	return func(o *Options) { o.TTL = d }
}

// WithConsistentRead enables strongly consistent reads.
func WithConsistentRead() Option {
	return func(o *Options) { o.ConsistentRead = true }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithEndpoint sets a custom endpoint, e.g. DynamoDB Local.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithClock replaces time.Now for TTL handling.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// Backend is a poscache.BatchBackend storing row groups in a DynamoDB table.
type Backend struct {
	client DDBClient
	table  string
	opts   Options
}

var _ poscache.BatchBackend = (*Backend)(nil)

// New loads the default AWS configuration and returns a backend for table.
func New(ctx context.Context, table string, optFns ...Option) (*Backend, error) {
	o := applyOptions(optFns)

	var cfgOpts []func(*config.LoadOptions) error
	if o.Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(o.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(do *dynamodb.Options) {
		if o.Endpoint != "" {
			do.BaseEndpoint = aws.String(o.Endpoint)
		}
	})
	return &Backend{client: client, table: table, opts: o}, nil
}

// NewBackend returns a backend using client.
func NewBackend(client DDBClient, table string, optFns ...Option) *Backend {
	return &Backend{client: client, table: table, opts: applyOptions(optFns)}
}

func applyOptions(optFns []Option) Options {
	o := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrKey: &types.AttributeValueMemberS{Value: key}}
}

func rowsOf(item map[string]types.AttributeValue) ([]byte, bool) {
	b, ok := item[attrRows].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false
	}
	return b.Value, true
}

// expired reports whether item is past its TTL. DynamoDB deletes expired
// items lazily, so reads filter them.
func (b *Backend) expired(item map[string]types.AttributeValue) bool {
	n, ok := item[attrExpires].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	at, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return b.opts.Now().Unix() >= at
}

// Get implements poscache.Backend.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(b.opts.ConsistentRead),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get item %s: %w", key, err)
	}
	if out.Item == nil || b.expired(out.Item) {
		return nil, false, nil
	}
	v, ok := rowsOf(out.Item)
	return v, ok, nil
}

// GetMany implements poscache.BatchBackend.
func (b *Backend) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			unique = append(unique, k)
		}
	}

	for start := 0; start < len(unique); start += maxBatchGet {
		chunk := unique[start:min(start+maxBatchGet, len(unique))]
		req := make([]map[string]types.AttributeValue, len(chunk))
		for i, k := range chunk {
			req[i] = itemKey(k)
		}
		if err := b.batchGet(ctx, req, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *Backend) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, out map[string][]byte) error {
	pending := map[string]types.KeysAndAttributes{
		b.table: {Keys: keys, ConsistentRead: aws.Bool(b.opts.ConsistentRead)},
	}
	for range maxBatchRetries {
		resp, err := b.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch get: %w", err)
		}
		for _, item := range resp.Responses[b.table] {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok || b.expired(item) {
				continue
			}
			if v, ok := rowsOf(item); ok {
				out[k.Value] = v
			}
		}
		if len(resp.UnprocessedKeys[b.table].Keys) == 0 {
			return nil
		}
		pending = resp.UnprocessedKeys
	}
	return ErrUnprocessed
}

// Put implements poscache.Backend.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	item := itemKey(key)
	item[attrRows] = &types.AttributeValueMemberB{Value: value}
	if b.opts.TTL > 0 {
		at := b.opts.Now().Add(b.opts.TTL).Unix()
		item[attrExpires] = &types.AttributeValueMemberN{Value: strconv.FormatInt(at, 10)}
	}
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item %s: %w", key, err)
	}
	return nil
}
