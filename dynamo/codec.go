package dynamo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/store"
)

// marshalEntity converts an entity to a DynamoDB item carrying the given
// doc_version. The fields map nests under "fields", reference lists under
// "refs" as lists of {id, scope} maps holding identifiers only, never
// expanded targets.
func marshalEntity(e *store.Entity, version int64) (map[string]types.AttributeValue, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := e.CreatedAt
	if createdAt == "" {
		createdAt = now
	}

	fields, err := attributevalue.MarshalMap(e.Fields)
	if err != nil {
		return nil, fmt.Errorf("lattice/dynamo: marshal fields of %s/%s: %w", e.Scope, e.ID, err)
	}

	refs := make(map[string]types.AttributeValue, len(e.Refs))
	for field, list := range e.Refs {
		items := make([]types.AttributeValue, 0, len(list))
		for _, ref := range list {
			items = append(items, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"id":    &types.AttributeValueMemberS{Value: ref.ID},
				"scope": &types.AttributeValueMemberS{Value: ref.Scope},
			}})
		}
		refs[field] = &types.AttributeValueMemberL{Value: items}
	}

	return map[string]types.AttributeValue{
		"scope":       &types.AttributeValueMemberS{Value: e.Scope},
		"id":          &types.AttributeValueMemberS{Value: e.ID},
		"entity_type": &types.AttributeValueMemberS{Value: e.Type},
		"doc_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		"created_at":  &types.AttributeValueMemberS{Value: createdAt},
		"updated_at":  &types.AttributeValueMemberS{Value: now},
		"fields":      &types.AttributeValueMemberM{Value: fields},
		"refs":        &types.AttributeValueMemberM{Value: refs},
	}, nil
}

// unmarshalEntity converts a DynamoDB item to an entity. The doc_version
// number becomes the opaque version token handed to callers.
func unmarshalEntity(raw map[string]types.AttributeValue) (*store.Entity, error) {
	e := &store.Entity{
		ID:        stringAttr(raw, "id"),
		Scope:     stringAttr(raw, "scope"),
		Type:      stringAttr(raw, "entity_type"),
		CreatedAt: stringAttr(raw, "created_at"),
		UpdatedAt: stringAttr(raw, "updated_at"),
		Fields:    map[string]any{},
		Refs:      map[string][]store.Ref{},
	}

	if v, ok := raw["doc_version"].(*types.AttributeValueMemberN); ok {
		e.Version = store.Version(v.Value)
	}

	if v, ok := raw["fields"].(*types.AttributeValueMemberM); ok {
		if err := attributevalue.UnmarshalMap(v.Value, &e.Fields); err != nil {
			return nil, fmt.Errorf("lattice/dynamo: unmarshal fields of %s/%s: %w", e.Scope, e.ID, err)
		}
	}

	if v, ok := raw["refs"].(*types.AttributeValueMemberM); ok {
		for field, attr := range v.Value {
			list, ok := attr.(*types.AttributeValueMemberL)
			if !ok {
				continue
			}
			refs := make([]store.Ref, 0, len(list.Value))
			for _, item := range list.Value {
				m, ok := item.(*types.AttributeValueMemberM)
				if !ok {
					continue
				}
				refs = append(refs, store.Ref{
					ID:    stringAttr(m.Value, "id"),
					Scope: stringAttr(m.Value, "scope"),
				})
			}
			e.Refs[field] = refs
		}
	}

	return e, nil
}

// filterExpression compiles a predicate to a DynamoDB filter over the nested
// fields map, appending the required placeholders to exprNames/exprValues.
func filterExpression(pred store.Predicate, exprNames map[string]string, exprValues map[string]types.AttributeValue) (string, error) {
	exprNames["#fields"] = "fields"

	var clauses []string
	for i, c := range pred {
		op, err := dynamoOp(c.Op)
		if err != nil {
			return "", err
		}
		value, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return "", fmt.Errorf("lattice/dynamo: marshal filter value for %q: %w", c.Field, err)
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = c.Field
		exprValues[valueKey] = value
		clauses = append(clauses, fmt.Sprintf("#fields.%s %s %s", nameKey, op, valueKey))
	}

	return joinStrings(clauses, " AND "), nil
}

// dynamoOp maps a predicate operator to its expression syntax.
func dynamoOp(op store.Op) (string, error) {
	switch op {
	case store.OpEq:
		return "=", nil
	case store.OpNe:
		return "<>", nil
	case store.OpGt:
		return ">", nil
	case store.OpGe:
		return ">=", nil
	case store.OpLt:
		return "<", nil
	case store.OpLe:
		return "<=", nil
	default:
		return "", fmt.Errorf("lattice/dynamo: unsupported operator %q", op)
	}
}

// stringAttr extracts a string attribute, returning "" when absent.
func stringAttr(raw map[string]types.AttributeValue, key string) string {
	if v, ok := raw[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// joinStrings joins strings with a separator (avoiding strings package import).
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
