package events

import (
	"fmt"

	"github.com/lavanet/lava-indexer/internal/models"
)

func parseResponseConflictDetection(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	consumer, ok := attrs.Provider("client")
	if !ok {
		return fmt.Errorf("conflict response without a valid client address")
	}
	specID := str(attrs.Str("chainID"))
	cs.AddConsumer(consumer)
	cs.AddSpec(specID)

	cs.ConflictResponses = append(cs.ConflictResponses, models.ConflictResponse{
		Height:         ctx.Height,
		Consumer:       &consumer,
		SpecID:         attrs.Str("chainID"),
		TxHash:         ctx.TxHash,
		VoteID:         attrs.Str("voteID"),
		RequestBlock:   attrs.Int("requestBlock"),
		VoteDeadline:   attrs.Int("voteDeadline"),
		APIInterface:   attrs.Str("apiInterface"),
		APIURL:         attrs.Str("apiURL"),
		ConnectionType: attrs.Str("connectionType"),
		RequestData:    attrs.Str("requestData"),
	})
	return nil
}

func parseConflictDetectionReceived(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	consumer := attrs.Str("client")
	if consumer != nil && ValidAddress(*consumer) {
		cs.AddConsumer(*consumer)
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindConflictDetectionReceived,
		Consumer: consumer,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseConflictVoteGotCommit(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("conflict vote commit without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.ConflictVotes = append(cs.ConflictVotes, models.ConflictVote{
		VoteID:   str(attrs.Str("voteID")),
		Height:   ctx.Height,
		Provider: &provider,
		TxHash:   ctx.TxHash,
	})
	return nil
}

func parseConflictVoteGotReveal(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	provider, ok := attrs.Provider("provider")
	if !ok {
		return fmt.Errorf("conflict vote reveal without a valid provider address")
	}
	cs.AddProvider(provider, "")

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindConflictVoteGotReveal,
		T1:       attrs.Str("voteID"),
		Provider: &provider,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseConflictVoteRevealStarted(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindConflictVoteRevealStarted,
		T1:       attrs.Str("voteID"),
		I1:       attrs.Int("voteDeadline"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseConflictVoteResolved(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	// The winner is a provider address unless the vote resolved to
	// "none"; keep whatever the chain says in the provider slot.
	winner := attrs.Str("winner")
	if winner != nil && ValidAddress(*winner) {
		cs.AddProvider(*winner, "")
	}

	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindConflictVoteResolved,
		T1:       attrs.Str("voteID"),
		B1:       attrs.Ulava("RewardPool"),
		B2:       attrs.Int("TotalVotes"),
		I1:       attrs.Int("NumOfNoVoters"),
		I2:       attrs.Int("NumOfVoters"),
		Provider: winner,
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}

func parseConflictVoteUnresolved(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
	cs.Events = append(cs.Events, models.Event{
		Kind:     models.KindConflictVoteUnresolved,
		T1:       attrs.Str("voteID"),
		T2:       attrs.Str("voteFailed"),
		B1:       attrs.Ulava("RewardPool"),
		B2:       attrs.Int("TotalVotes"),
		I1:       attrs.Int("NumOfNoVoters"),
		I2:       attrs.Int("NumOfVoters"),
		Height:   ctx.Height,
		TxHash:   ctx.TxHash,
		Fulltext: attrs.Fulltext(),
	})
	return nil
}
