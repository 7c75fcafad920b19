package events

import (
	"fmt"

	"github.com/lavanet/lava-indexer/internal/models"
)

func i64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseRelayPayment produces the primary fact row. The provider
// address identifies the row, so an invalid address drops the event.
func parseRelayPayment(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("relay payment without a valid provider address")
	}

	specID := str(attrs.Str("chainID"))
	consumer := str(attrs.Str("client"))

	cs.AddProvider(provider, "")
	cs.AddSpec(specID)
	cs.AddConsumer(consumer)

	cs.RelayPayments = append(cs.RelayPayments, models.RelayPayment{
		Relays:   i64(attrs.Int("relayNumber")),
		CU:       i64(attrs.Int("CU")),
		Pay:      i64(attrs.Ulava("BasePay")),
		Datetime: ctx.Datetime,
		QoSSync:         attrs.Float("QoSSync"),
		QoSAvailability: attrs.Float("QoSAvailability"),
		QoSLatency:      attrs.Float("QoSLatency"),
		QoSSyncExc:         attrs.Float("ExcellenceQoSSync"),
		QoSAvailabilityExc: attrs.Float("ExcellenceQoSAvailability"),
		QoSLatencyExc:      attrs.Float("ExcellenceQoSLatency"),
		Provider: provider,
		SpecID:   specID,
		Height:   ctx.Height,
		Consumer: consumer,
		TxHash:   ctx.TxHash,
	})
	return nil
}
