package events

import (
	"strings"

	"github.com/lavanet/lava-indexer/internal/models"
)

// parseProviderBonusRewards handles the bonus-rewards event, whose
// attribute keys are "<provider> <chain>" pairs and whose values are
// the awarded amounts. One row is produced per pair.
func parseProviderBonusRewards(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	for key, value := range attrs {
		parts := strings.Fields(key)
		if len(parts) != 2 || !ValidAddress(parts[0]) {
			continue
		}
		provider, chain := parts[0], parts[1]
		cs.AddProvider(provider, "")
		cs.AddSpec(chain)

		amount := Attrs{"amount": value}.Ulava("amount")
		cs.Events = append(cs.Events, models.Event{
			Kind:     models.KindProviderBonusRewards,
			T1:       &chain,
			B1:       amount,
			Provider: &provider,
			Height:   ctx.Height,
			TxHash:   ctx.TxHash,
			Fulltext: attrs.Fulltext(),
		})
	}
	return nil
}

func parseValidatorSlash(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindValidatorSlash,
		T1:       attrs.Str("validator_address"),
		R1:       attrs.Float("slash_fraction"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseIPRPCPoolEmission(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindIPRPCPoolEmission,
		T1:       attrs.Str("iprpc_rewards_leftovers"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseDistributionPoolsRefill(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindDistributionPoolsRefill,
		T1:       attrs.Str("next_refill_time"),
		I1:       attrs.Int("allocation_pool_remaining_lifetime"),
		I2:       attrs.Int("next_refill_block"),
		I3:       attrs.Int("providers_distribution_pool_balance"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}
