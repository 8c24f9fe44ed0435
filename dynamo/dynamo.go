// Package dynamo implements the lattice document store boundary on DynamoDB.
//
// Documents live in a single table keyed by partition key "scope" and sort
// key "id". The opaque version token is backed by a numeric doc_version
// attribute guarded by a ConditionExpression, so a conditional write fails
// distinctly when a concurrent writer got there first.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/internal/batch"
	"github.com/jacentio/lattice/store"
)

// Store provides document operations backed by a DynamoDB table.
type Store struct {
	client *dynamodb.Client
	config Config
}

var _ store.DocumentStore = (*Store)(nil)

// New creates a new Store instance.
func New(client *dynamodb.Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Get retrieves an entity by id and partition scope, returning
// store.ErrNotFound if missing.
func (s *Store) Get(ctx context.Context, id, scope string) (*store.Entity, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.Table),
		Key:       documentKey(id, scope),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, store.ErrNotFound
	}
	return unmarshalEntity(result.Item)
}

// ConditionalWrite upserts the entity guarded by the expected version token.
// An empty token requires the document to not exist yet. A rejected
// condition maps to store.ErrConflict; every other failure is returned
// verbatim.
func (s *Store) ConditionalWrite(ctx context.Context, e *store.Entity, expected store.Version) (store.Version, error) {
	var (
		current int64
		cond    string
		values  map[string]types.AttributeValue
	)
	names := map[string]string{"#scope": "scope"}
	if expected == "" {
		cond = "attribute_not_exists(#scope)"
	} else {
		n, err := strconv.ParseInt(string(expected), 10, 64)
		if err != nil {
			return "", fmt.Errorf("lattice/dynamo: malformed version token %q: %w", expected, err)
		}
		current = n
		cond = "#version = :expected"
		names["#version"] = "doc_version"
		values = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)},
		}
	}
	next := current + 1

	item, err := marshalEntity(e, next)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.Table),
		Item:                item,
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", store.ErrConflict
		}
		return "", err
	}
	return store.Version(strconv.FormatInt(next, 10)), nil
}

// BatchGet reads many documents from one partition scope. Key chunks follow
// the BatchGetItem ceiling; unprocessed keys are re-requested a bounded
// number of rounds. Missing identifiers are omitted from the result.
func (s *Store) BatchGet(ctx context.Context, scope string, ids []string) ([]*store.Entity, error) {
	var out []*store.Entity
	for _, chunk := range batch.Chunk(ids, batch.DefaultSize) {
		keys := make([]map[string]types.AttributeValue, 0, len(chunk))
		for _, id := range chunk {
			keys = append(keys, documentKey(id, scope))
		}

		for round := 0; len(keys) > 0; round++ {
			if round > s.config.UnprocessedRetries {
				return nil, fmt.Errorf("lattice/dynamo: batch read of scope %q left %d key(s) unprocessed after %d round(s)",
					scope, len(keys), round)
			}

			result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					s.config.Table: {Keys: keys},
				},
			})
			if err != nil {
				return nil, err
			}

			for _, raw := range result.Responses[s.config.Table] {
				e, err := unmarshalEntity(raw)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			keys = result.UnprocessedKeys[s.config.Table].Keys
		}
	}
	return out, nil
}

// Query returns all documents in one partition scope matching the predicate.
// Predicate conditions compile to a FilterExpression over the nested fields
// map; results paginate transparently.
func (s *Store) Query(ctx context.Context, scope string, pred store.Predicate) ([]*store.Entity, error) {
	exprNames := map[string]string{"#scope": "scope"}
	exprValues := map[string]types.AttributeValue{
		":scope": &types.AttributeValueMemberS{Value: scope},
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.config.Table),
		KeyConditionExpression: aws.String("#scope = :scope"),
	}
	if len(pred) > 0 {
		filter, err := filterExpression(pred, exprNames, exprValues)
		if err != nil {
			return nil, err
		}
		input.FilterExpression = aws.String(filter)
	}
	input.ExpressionAttributeNames = exprNames
	input.ExpressionAttributeValues = exprValues

	var out []*store.Entity
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			e, err := unmarshalEntity(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// documentKey builds the table key for an entity.
func documentKey(id, scope string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"scope": &types.AttributeValueMemberS{Value: scope},
		"id":    &types.AttributeValueMemberS{Value: id},
	}
}
