package memory

import (
	"encoding/json"

	contractsv1 "folio/contracts/events/v1"

	"folio/contexts/publishing-core/registry-service/ports"
)

func buildPublishedEnvelope(event ports.PublishedEvent) contractsv1.Envelope {
	data, _ := json.Marshal(map[string]any{
		"paper_id": event.PaperID,
		"authors":  event.Authors,
		"price":    event.Price,
	})
	return contractsv1.Envelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    "registry-service",
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "paper_id",
		PartitionKey:     event.PartitionKey,
		Data:             data,
	}
}
