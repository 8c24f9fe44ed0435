package stream_test

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/aggregate"
	"github.com/jacentio/lattice/occ"
	"github.com/jacentio/lattice/store"
	"github.com/jacentio/lattice/stream"
)

// conflictingStore rejects every conditional write.
type conflictingStore struct {
	*store.Memory
}

func (c *conflictingStore) ConditionalWrite(ctx context.Context, e *store.Entity, expected store.Version) (store.Version, error) {
	return "", store.ErrConflict
}

func childImage(id, childType, parentID, parentScope string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":          events.NewStringAttribute(id),
		"scope":       events.NewStringAttribute(parentScope),
		"entity_type": events.NewStringAttribute(childType),
		"refs": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"project": events.NewListAttribute([]events.DynamoDBAttributeValue{
				events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
					"id":    events.NewStringAttribute(parentID),
					"scope": events.NewStringAttribute(parentScope),
				}),
			}),
		}),
	}
}

func insertEvent(image map[string]events.DynamoDBAttributeValue) events.DynamoDBEvent {
	return events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{
			EventID:   "evt-1",
			EventName: "INSERT",
			Change:    events.DynamoDBStreamRecord{NewImage: image},
		}},
	}
}

func removeEvent(image map[string]events.DynamoDBAttributeValue) events.DynamoDBEvent {
	return events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{
			EventID:   "evt-2",
			EventName: "REMOVE",
			Change:    events.DynamoDBStreamRecord{OldImage: image},
		}},
	}
}

func seedProject(m *store.Memory, openCount int64) {
	p := store.NewEntity("proj-1", "tenant-a", "project")
	p.SetField("openCount", openCount)
	m.Seed(p)
}

func seedOpenTicket(m *store.Memory, id string) {
	c := store.NewEntity(id, "tenant-a", "ticket")
	c.SetField("status", "open")
	c.Refs["project"] = []store.Ref{{ID: "proj-1", Scope: "tenant-a"}}
	m.Seed(c)
}

func recomputeRegistry(m *store.Memory) *aggregate.Registry {
	reg := aggregate.NewRegistry()
	reg.Register(aggregate.Rule{
		ChildType:      "ticket",
		ParentRefField: "project",
		Field:          "openCount",
		Recompute: aggregate.CountChildren(m, "tenant-a", "ticket", "openCount",
			store.Where("status", store.OpEq, "open")),
	})
	return reg
}

func TestHandleAggregateRefresh_RecomputeOnInsert(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0) // stale: children already exist
	seedOpenTicket(m, "t1")
	seedOpenTicket(m, "t2")

	h := stream.NewHandler(aggregate.New(occ.New(m)), recomputeRegistry(m), nil)
	err := h.HandleAggregateRefresh(ctx, insertEvent(childImage("t2", "ticket", "proj-1", "tenant-a")))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	parent, _ := m.Get(ctx, "proj-1", "tenant-a")
	if n, _ := parent.Int64Field("openCount"); n != 2 {
		t.Errorf("expected openCount 2 after refresh, got %d", n)
	}
}

func TestHandleAggregateRefresh_IncrementalDelta(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0)

	reg := aggregate.NewRegistry()
	reg.Register(aggregate.Rule{
		ChildType:      "ticket",
		ParentRefField: "project",
		Field:          "totalCount",
		Strategy:       aggregate.IncrementalDelta,
	})

	h := stream.NewHandler(aggregate.New(occ.New(m)), reg, nil)
	image := childImage("t1", "ticket", "proj-1", "tenant-a")

	if err := h.HandleAggregateRefresh(ctx, insertEvent(image)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	parent, _ := m.Get(ctx, "proj-1", "tenant-a")
	if n, _ := parent.Int64Field("totalCount"); n != 1 {
		t.Errorf("expected totalCount 1 after INSERT, got %d", n)
	}

	if err := h.HandleAggregateRefresh(ctx, removeEvent(image)); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	parent, _ = m.Get(ctx, "proj-1", "tenant-a")
	if n, _ := parent.Int64Field("totalCount"); n != 0 {
		t.Errorf("expected totalCount 0 after REMOVE, got %d", n)
	}
}

func TestHandleAggregateRefresh_ModifySkipsDeltaFields(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0)

	reg := aggregate.NewRegistry()
	reg.Register(aggregate.Rule{
		ChildType:      "ticket",
		ParentRefField: "project",
		Field:          "totalCount",
		Strategy:       aggregate.IncrementalDelta,
	})
	m.ResetStats()

	h := stream.NewHandler(aggregate.New(occ.New(m)), reg, nil)
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{{
			EventID:   "evt-3",
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				NewImage: childImage("t1", "ticket", "proj-1", "tenant-a"),
			},
		}},
	}

	if err := h.HandleAggregateRefresh(ctx, event); err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if got := m.Stats().Writes; got != 0 {
		t.Errorf("expected no writes for MODIFY under incremental-delta, got %d", got)
	}
}

func TestHandleAggregateRefresh_UnregisteredTypeSkipped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0)
	m.ResetStats()

	h := stream.NewHandler(aggregate.New(occ.New(m)), aggregate.NewRegistry(), nil)
	err := h.HandleAggregateRefresh(ctx, insertEvent(childImage("t1", "ticket", "proj-1", "tenant-a")))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := m.Stats().Writes; got != 0 {
		t.Errorf("expected no writes for unregistered child type, got %d", got)
	}
}

func TestHandleAggregateRefresh_MissingParentRefSkipsRule(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0)

	image := map[string]events.DynamoDBAttributeValue{
		"id":          events.NewStringAttribute("t1"),
		"entity_type": events.NewStringAttribute("ticket"),
	}

	h := stream.NewHandler(aggregate.New(occ.New(m)), recomputeRegistry(m), nil)
	if err := h.HandleAggregateRefresh(ctx, insertEvent(image)); err != nil {
		t.Fatalf("expected records without a parent ref to be skipped, got %v", err)
	}
}

func TestHandleAggregateRefresh_StaleAggregateReturnsError(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedProject(m, 0)
	seedOpenTicket(m, "t1")
	cs := &conflictingStore{Memory: m}

	h := stream.NewHandler(aggregate.New(occ.New(cs)), recomputeRegistry(m), nil)
	err := h.HandleAggregateRefresh(ctx, insertEvent(childImage("t1", "ticket", "proj-1", "tenant-a")))
	if err == nil {
		t.Fatal("expected error so the invocation retries and eventually DLQs")
	}
}
