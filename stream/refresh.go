// Package stream provides a DynamoDB Streams handler that keeps parent
// aggregates fresh after child mutations.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/aggregate"
)

// Handler processes DynamoDB stream events and refreshes the aggregates
// registered for each mutated child type.
type Handler struct {
	maintainer *aggregate.Maintainer
	registry   *aggregate.Registry
	logger     *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(m *aggregate.Maintainer, registry *aggregate.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		maintainer: m,
		registry:   registry,
		logger:     logger,
	}
}

// HandleAggregateRefresh processes DynamoDB stream events, refreshing parent
// aggregates affected by each child record. This function is designed to be
// used as an AWS Lambda handler.
//
// A refresh that exhausts its conflict retries returns an error so the
// Lambda invocation retries and eventually lands in the DLQ; the parent
// keeps serving its last committed value in the meantime.
func (h *Handler) HandleAggregateRefresh(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord refreshes every aggregate rule triggered by one stream
// record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	image := record.Change.NewImage
	if record.EventName == "REMOVE" {
		image = record.Change.OldImage
	}

	childType := getStringAttr(image, "entity_type")
	rules := h.registry.RulesFor(childType)
	if len(rules) == 0 {
		return nil
	}

	childID := getStringAttr(image, "id")
	for _, rule := range rules {
		parent, ok := getRefAttr(image, "refs", rule.ParentRefField)
		if !ok {
			h.logger.Warn("child record has no parent ref",
				"childType", childType,
				"childID", childID,
				"refField", rule.ParentRefField,
			)
			continue
		}

		h.logger.Info("refreshing aggregate",
			"parent", parent.Scope+"/"+parent.ID,
			"field", rule.Field,
			"strategy", rule.Strategy.String(),
			"event", record.EventName,
		)

		var err error
		switch rule.Strategy {
		case aggregate.IncrementalDelta:
			delta := deltaFor(record.EventName)
			if delta == 0 {
				continue
			}
			_, err = h.maintainer.ApplyDelta(ctx, parent.ID, parent.Scope, rule.Field, delta)
		default:
			_, err = h.maintainer.Refresh(ctx, parent.ID, parent.Scope, rule.Recompute)
		}
		if err != nil {
			return fmt.Errorf("refresh %s on %s/%s: %w", rule.Field, parent.Scope, parent.ID, err)
		}
	}

	return nil
}

// deltaFor maps a stream event to an incremental-delta change. MODIFY events
// keep counts unchanged and are skipped for delta-maintained fields.
func deltaFor(eventName string) int64 {
	switch eventName {
	case "INSERT":
		return 1
	case "REMOVE":
		return -1
	default:
		return 0
	}
}
