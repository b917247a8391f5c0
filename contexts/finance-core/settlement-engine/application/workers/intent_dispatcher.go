package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"folio/contexts/finance-core/settlement-engine/ports"
)

const intentEventType = "settlement.intent"

// IntentDispatcher consumes settlement intent events and hands them to the
// external payout rail. The rail integration is a log line until the rail
// client lands; the consumer contract and dedup-by-event-id stay the same.
type IntentDispatcher struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	Topic         string
	Logger        *slog.Logger
}

type intentPayload struct {
	RecipientAccount string `json:"recipient_account"`
	Amount           uint64 `json:"amount"`
	PaperID          string `json:"paper_id"`
}

func (d IntentDispatcher) Start(ctx context.Context) error {
	topic := d.Topic
	if topic == "" {
		topic = "paper.purchased"
	}
	group := d.ConsumerGroup
	if group == "" {
		group = "settlement-intent-dispatcher-cg"
	}
	return d.Subscriber.Subscribe(ctx, topic, group, d.handle)
}

func (d IntentDispatcher) handle(_ context.Context, event ports.EventEnvelope) error {
	if event.EventType != intentEventType {
		return nil
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var payload intentPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("intent payload decode failed",
			"event", "settlement_intent_decode_failed",
			"module", "finance-core/settlement-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("settlement intent dispatched",
		"event", "settlement_intent_dispatched",
		"module", "finance-core/settlement-engine",
		"layer", "worker",
		"event_id", event.EventID,
		"paper_id", payload.PaperID,
		"recipient_account", payload.RecipientAccount,
		"amount", payload.Amount,
	)
	return nil
}
