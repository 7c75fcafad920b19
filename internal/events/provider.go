package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lavanet/lava-indexer/internal/models"
)

func boolInt(attrs Attrs, key string) *int64 {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	var n int64
	if v == "true" {
		n = 1
	}
	return &n
}

func parseStakeNewProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("stake event without a valid provider address")
	}
	moniker := str(attrs.Str("moniker"))
	cs.AddProvider(provider, moniker)
	cs.AddSpec(str(attrs.Str("spec")))

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindStakeNewProvider,
		T1:       attrs.Str("spec"),
		T2:       attrs.Str("moniker"),
		B1:       attrs.Ulava("stake"),
		I1:       attrs.Int("stakeAppliedBlock"),
		I2:       attrs.Int("geolocation"),
		I3:       boolInt(attrs, "effectiveImmediately"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseStakeUpdateProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("stake update without a valid provider address")
	}
	cs.AddProvider(provider, str(attrs.Str("moniker")))
	cs.AddSpec(str(attrs.Str("spec")))

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindStakeUpdateProvider,
		T1:       attrs.Str("moniker"),
		T2:       attrs.Str("spec"),
		B1:       attrs.Ulava("stake"),
		I1:       attrs.Int("stakeAppliedBlock"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

// parseProviderUnstakeCommit keeps whatever address the chain emitted;
// historical blocks carry addresses in formats the current rule
// rejects, and losing the unstake record is worse than a loose field.
func parseProviderUnstakeCommit(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	address := attrs.Str("address")
	if address != nil && ValidAddress(*address) {
		cs.AddProvider(*address, str(attrs.Str("moniker")))
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindProviderUnstakeCommit,
		T1:       attrs.Str("moniker"),
		T2:       attrs.Str("chainID"),
		B1:       attrs.Ulava("stake"),
		I1:       attrs.Int("geolocation"),
		Provider: address,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseFreezeProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("providerAddress")
	if !ok {
		return fmt.Errorf("freeze event without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindFreezeProvider,
		T1:       attrs.Str("freezeReason"),
		T2:       attrs.Str("chainIDs"),
		I1:       attrs.Int("freezeRequestBlock"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseUnfreezeProvider(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("providerAddress")
	if !ok {
		return fmt.Errorf("unfreeze event without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindUnfreezeProvider,
		T1:       attrs.Str("chainIDs"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseProviderJailed(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider_address")
	if !ok {
		return fmt.Errorf("jail event without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindProviderJailed,
		T1:       attrs.Str("chain_id"),
		B1:       attrs.Int("complaint_cu"),
		B2:       attrs.Int("serviced_cu"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseProviderTemporaryJailed(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider_address")
	if !ok {
		return fmt.Errorf("temporary jail event without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindProviderTemporaryJailed,
		T1:       attrs.Str("chain_id"),
		T2:       attrs.Str("duration"),
		B1:       attrs.Int("complaint_cu"),
		B2:       attrs.Int("serviced_cu"),
		R2:       attrs.Float("end"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseFreezeFromUnbond(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider", "provider_provider")
	if !ok {
		return fmt.Errorf("freeze from unbond without a valid provider address")
	}
	cs.AddProvider(provider, str(attrs.Str("moniker")))

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindFreezeFromUnbond,
		T1:       attrs.Str("chain_id"),
		B1:       attrs.Ulava("effective_stake"),
		B2:       attrs.Ulava("stake"),
		B3:       attrs.Ulava("min_spec_stake"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseUnstakeFromUnbond(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider", "provider_provider")
	if !ok {
		return fmt.Errorf("unstake from unbond without a valid provider address")
	}
	cs.AddProvider(provider, str(attrs.Str("moniker")))

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindUnstakeFromUnbond,
		T2:       attrs.Str("chainID"),
		T3:       attrs.Str("provider_vault"),
		B1:       attrs.Ulava("min_self_delegation"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseProviderReported(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("provider report without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.ProviderReported = append(cs.ProviderReported, models.ProviderReported{
		Provider:                &provider,
		Height:                  ctx.Height,
		CU:                      attrs.Int("cu"),
		Disconnections:          attrs.Int("disconnections"),
		Epoch:                   attrs.Int("epoch"),
		Errors:                  attrs.Int("errors"),
		Project:                 attrs.Str("project"),
		Datetime:                parseReportTimestamp(attrs, ctx),
		TotalComplaintThisEpoch: attrs.Int("total_complaint_this_epoch"),
		TxHash:                  ctx.TxHash,
	})
	return nil
}

func parseReportTimestamp(attrs Attrs, ctx Ctx) *time.Time {
	v, ok := attrs["timestamp"]
	if !ok {
		return &ctx.Datetime
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return &ctx.Datetime
}

// parseProviderLatestBlockReport handles the one event whose attribute
// keys are data: every key besides "provider" names a chain and its
// value is that chain's reported head height.
func parseProviderLatestBlockReport(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("block report without a valid provider address")
	}
	cs.AddProvider(provider, "")

	for key, value := range attrs {
		if key == "provider" || key == "timestamp" {
			continue
		}
		h, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		cs.AddSpec(key)
		cs.LatestBlockReports = append(cs.LatestBlockReports, models.ProviderLatestBlockReport{
			Provider:    provider,
			Height:      ctx.Height,
			TxHash:      ctx.TxHash,
			Timestamp:   ctx.Datetime,
			ChainID:     key,
			ChainHeight: h,
		})
	}
	return nil
}
