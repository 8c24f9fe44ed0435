package stream

import (
	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/store"
)

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getRefAttr extracts the first reference from a reference-list field nested
// under the refs map of a stream image. Returns false when the field is
// absent or empty.
func getRefAttr(image map[string]events.DynamoDBAttributeValue, refsKey, field string) (store.Ref, bool) {
	refs, ok := image[refsKey]
	if !ok || refs.DataType() != events.DataTypeMap {
		return store.Ref{}, false
	}
	list, ok := refs.Map()[field]
	if !ok || list.DataType() != events.DataTypeList || len(list.List()) == 0 {
		return store.Ref{}, false
	}
	first := list.List()[0]
	if first.DataType() != events.DataTypeMap {
		return store.Ref{}, false
	}
	ref := store.Ref{
		ID:    getStringAttr(first.Map(), "id"),
		Scope: getStringAttr(first.Map(), "scope"),
	}
	if ref.ID == "" {
		return store.Ref{}, false
	}
	return ref, true
}
