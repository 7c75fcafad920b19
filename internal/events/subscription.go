package events

import (
	"fmt"

	"github.com/lavanet/lava-indexer/internal/models"
)

func parseBuySubscription(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	consumer, ok := attrs.Provider("consumer")
	if !ok {
		return fmt.Errorf("subscription buy without a valid consumer address")
	}
	cs.AddConsumer(consumer)

	plan := attrs.Str("plan")
	if plan != nil {
		cs.AddPlan(&models.Plan{ID: *plan})
	}

	cs.SubscriptionBuys = append(cs.SubscriptionBuys, models.SubscriptionBuy{
		Height:   ctx.Height,
		Consumer: &consumer,
		Duration: attrs.Int("duration"),
		Plan:     plan,
		TxHash:   ctx.TxHash,
	})
	return nil
}

func parseExpireSubscription(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	consumer := attrs.Str("consumer")
	if consumer != nil && ValidAddress(*consumer) {
		cs.AddConsumer(*consumer)
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindExpireSubscription,
		Consumer: consumer,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseSetSubscriptionPolicy(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindSetSubscriptionPolicy,
		T1:       attrs.Str("project"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}
