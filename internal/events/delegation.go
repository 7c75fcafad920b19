package events

import (
	"github.com/lavanet/lava-indexer/internal/models"
)

func delegatorConsumer(attrs Attrs, cs *ChangeSet) *string {
	delegator := attrs.Str("delegator")
	if delegator != nil && ValidAddress(*delegator) {
		cs.AddConsumer(*delegator)
	}
	return delegator
}

func parseDelegateToProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider := attrs.Str("provider")
	if provider != nil && ValidAddress(*provider) {
		cs.AddProvider(*provider, "")
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindDelegateToProvider,
		T2:       attrs.Str("chainID"),
		T3:       attrs.Str("amount"),
		Provider: provider,
		Consumer: delegatorConsumer(attrs, cs),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseUnbondFromProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider := attrs.Str("provider")
	if provider != nil && ValidAddress(*provider) {
		cs.AddProvider(*provider, "")
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindUnbondFromProvider,
		T2:       attrs.Str("chainID"),
		B1:       attrs.Ulava("amount"),
		Provider: provider,
		Consumer: delegatorConsumer(attrs, cs),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseRedelegateBetweenProviders(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	from := attrs.Str("from_provider")
	if from != nil && ValidAddress(*from) {
		cs.AddProvider(*from, "")
	}
	to := attrs.Str("to_provider")
	if to != nil && ValidAddress(*to) {
		cs.AddProvider(*to, "")
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindRedelegateBetweenProviders,
		T1:       to,
		T2:       attrs.Str("from_chainID"),
		T3:       attrs.Str("to_chainID"),
		B1:       attrs.Ulava("amount"),
		Provider: from,
		Consumer: delegatorConsumer(attrs, cs),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseDelegatorClaimRewards(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider := attrs.Str("provider")
	if provider != nil && ValidAddress(*provider) {
		cs.AddProvider(*provider, "")
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindDelegatorClaimRewards,
		B1:       attrs.Ulava("claimed"),
		Provider: provider,
		Consumer: delegatorConsumer(attrs, cs),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}
