package events

import (
	"log/slog"

	"github.com/lavanet/lava-indexer/internal/models"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// ParseFunc turns one event's flattened attributes into ChangeSet rows.
// Returning an error drops the event; the dispatcher records it as a
// parse-error row so malformed events stay visible.
type ParseFunc func(ctx Ctx, attrs Attrs, cs *ChangeSet) error

// parsers maps the on-chain event type tag to its parser. The pool
// emission tag appears with two spellings on chain; both are wired.
var parsers = map[string]ParseFunc{
	"lava_relay_payment": parseRelayPayment,

	"lava_stake_new_provider":        parseStakeNewProvider,
	"lava_stake_update_provider":     parseStakeUpdateProvider,
	"lava_provider_unstake_commit":   parseProviderUnstakeCommit,
	"lava_freeze_provider":           parseFreezeProvider,
	"lava_unfreeze_provider":         parseUnfreezeProvider,
	"lava_provider_jailed":           parseProviderJailed,
	"lava_provider_temporary_jailed": parseProviderTemporaryJailed,
	"lava_freeze_from_unbond":        parseFreezeFromUnbond,
	"lava_unstake_from_unbond":       parseUnstakeFromUnbond,

	"lava_buy_subscription_event":            parseBuySubscription,
	"lava_expire_subscription_event":         parseExpireSubscription,
	"lava_add_project_to_subscription_event": parseAddProjectToSubscription,
	"lava_del_project_to_subscription_event": parseDelProjectToSubscription,
	"lava_add_key_to_project_event":          parseAddKeyToProject,
	"lava_del_key_from_project_event":        parseDelKeyFromProject,
	"lava_set_subscription_policy_event":     parseSetSubscriptionPolicy,

	"lava_response_conflict_detection":        parseResponseConflictDetection,
	"lava_conflict_detection_received":        parseConflictDetectionReceived,
	"lava_conflict_vote_got_commit":           parseConflictVoteGotCommit,
	"lava_conflict_vote_got_reveal":           parseConflictVoteGotReveal,
	"lava_conflict_vote_reveal_started":       parseConflictVoteRevealStarted,
	"lava_conflict_detection_vote_resolved":   parseConflictVoteResolved,
	"lava_conflict_detection_vote_unresolved": parseConflictVoteUnresolved,

	"lava_provider_reported":            parseProviderReported,
	"lava_provider_latest_block_report": parseProviderLatestBlockReport,

	"lava_delegate_to_provider":         parseDelegateToProvider,
	"lava_unbond_from_provider":         parseUnbondFromProvider,
	"lava_redelegate_between_providers": parseRedelegateBetweenProviders,
	"lava_delegator_claim_rewards":      parseDelegatorClaimRewards,
	"lava_provider_bonus_rewards":       parseProviderBonusRewards,
	"lava_validator_slash":              parseValidatorSlash,
	"lava_iprpc-pool-emmission":         parseIPRPCPoolEmission,
	"lava_iprpc_pool_emmission":         parseIPRPCPoolEmission,
	"lava_distribution_pools_refill":    parseDistributionPoolsRefill,
}

// noise lists event types emitted by the SDK and consensus layers that
// carry nothing the indexer tracks. They are skipped without logging.
var noise = map[string]struct{}{
	"lava_new_epoch":                     {},
	"lava_earliest_epoch":                {},
	"lava_fixated_params_change":         {},
	"lava_fixated_params_clean":          {},
	"lava_param_change":                  {},
	"lava_spec_add":                      {},
	"lava_spec_refresh":                  {},
	"lava_spec_modify":                   {},
	"update_client":                      {},
	"denomination_trace":                 {},
	"fungible_token_packet":              {},
	"write_acknowledgement":              {},
	"recv_packet":                        {},
	"acknowledge_packet":                 {},
	"send_packet":                        {},
	"ibc_transfer":                       {},
	"submit_proposal":                    {},
	"proposal_deposit":                   {},
	"proposal_vote":                      {},
	"active_proposal":                    {},
	"coin_received":                      {},
	"coin_spent":                         {},
	"coinbase":                           {},
	"transfer":                           {},
	"message":                            {},
	"tx":                                 {},
	"withdraw_rewards":                   {},
	"withdraw_commission":                {},
	"set_withdraw_address":               {},
	"delegate":                           {},
	"redelegate":                         {},
	"unbond":                             {},
	"create_validator":                   {},
	"edit_validator":                     {},
	"complete_unbonding":                 {},
	"complete_redelegation":              {},
	"liveness":                           {},
	"mint":                               {},
	"burn":                               {},
	"slash":                              {},
	"commission":                         {},
	"rewards":                            {},
	"use_feegrant":                       {},
	"update_feegrant":                    {},
	"cosmos.authz.v1beta1.EventGrant":    {},
	"cosmos.authz.v1beta1.MsgGrant":      {},
}

// Dispatch routes one raw event through the registry into cs.
func Dispatch(ctx Ctx, ev rpc.Event, cs *ChangeSet) {
	if _, skip := noise[ev.Type]; skip {
		return
	}

	attrs := Flatten(ev)

	parse, ok := parsers[ev.Type]
	if !ok {
		slog.Debug("unidentified event type", "type", ev.Type, "height", ctx.Height)
		typ := ev.Type
		cs.Events = append(cs.Events, models.Event{
			Kind:     models.KindUnidentified,
			T1:       &typ,
			Height:   ctx.Height,
			TxHash:   ctx.TxHash,
			Fulltext: attrs.Fulltext(),
		})
		return
	}

	if err := parse(ctx, attrs, cs); err != nil {
		slog.Warn("event parse failed", "type", ev.Type, "height", ctx.Height, "error", err)
		typ := ev.Type
		msg := err.Error()
		cs.Events = append(cs.Events, models.Event{
			Kind:     models.KindParseError,
			T1:       &typ,
			T2:       &msg,
			Height:   ctx.Height,
			TxHash:   ctx.TxHash,
			Fulltext: attrs.Fulltext(),
		})
	}
}
