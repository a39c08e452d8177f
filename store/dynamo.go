package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// DynamoStore is a Store backed by a single DynamoDB table with a
// string partition key "pk", a string "value" attribute, and a
// numeric "ttl" attribute, written by SetTTL, wired to the table's
// native TTL expiry.
type DynamoStore struct {
	client *dynamodb.DynamoDB
	table  string
}

// NewDynamoStore wraps an already-configured DynamoDB client pointed
// at table.
func NewDynamoStore(client *dynamodb.DynamoDB, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"pk": {S: aws.String(key)},
		},
	})
	if err != nil {
		return "", false, err
	}
	if out.Item == nil {
		return "", false, nil
	}
	v, ok := out.Item["value"]
	if !ok || v.S == nil {
		return "", false, nil
	}
	return *v.S, true, nil
}

func (s *DynamoStore) Set(ctx context.Context, key, value string) error {
	_, err := s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]*dynamodb.AttributeValue{
			"pk":    {S: aws.String(key)},
			"value": {S: aws.String(value)},
		},
	})
	return err
}

func (s *DynamoStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]*dynamodb.AttributeValue{
			"pk":    {S: aws.String(key)},
			"value": {S: aws.String(value)},
			"ttl":   {N: aws.String(strconv.FormatInt(expiresAt, 10))},
		},
	})
	return err
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"pk": {S: aws.String(key)},
		},
	})
	return err
}

// List scans the table for keys with the given prefix. DynamoDB has no
// native prefix query on a plain partition key without a secondary
// index; a full scan is acceptable here because the command surface
// only lists small, operator-facing sets (dynamic domains, dampening
// state), never the hot path.
func (s *DynamoStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			pk, ok := item["pk"]
			if !ok || pk.S == nil {
				continue
			}
			if strings.HasPrefix(*pk.S, prefix) {
				keys = append(keys, *pk.S)
			}
		}
		return true
	})
	return keys, err
}
