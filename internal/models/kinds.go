package models

// EventKind identifies which producer emitted a generic event row and
// therefore how its sparse slots are populated. Values are stable and
// stored in the database; never renumber.
type EventKind int

const (
	KindStakeNewProvider           EventKind = 1
	KindStakeUpdateProvider        EventKind = 2
	KindProviderUnstakeCommit      EventKind = 3
	KindFreezeProvider             EventKind = 4
	KindUnfreezeProvider           EventKind = 5
	KindAddKeyToProject            EventKind = 6
	KindAddProjectToSubscription   EventKind = 7
	KindConflictDetectionReceived  EventKind = 8
	KindDelKeyFromProject          EventKind = 9
	KindDelProjectToSubscription   EventKind = 10
	KindProviderJailed             EventKind = 11
	KindConflictVoteGotReveal      EventKind = 12
	KindConflictVoteRevealStarted  EventKind = 13
	KindConflictVoteResolved       EventKind = 14
	KindConflictVoteUnresolved     EventKind = 15
	KindDelegateToProvider         EventKind = 16
	KindExpireSubscription         EventKind = 17
	KindFreezeFromUnbond           EventKind = 18
	KindUnbondFromProvider         EventKind = 19
	KindUnstakeFromUnbond          EventKind = 20
	KindRedelegateBetweenProviders EventKind = 21
	KindProviderBonusRewards       EventKind = 22
	KindValidatorSlash             EventKind = 23
	KindIPRPCPoolEmission          EventKind = 24
	KindDistributionPoolsRefill    EventKind = 25
	KindProviderTemporaryJailed    EventKind = 26
	KindDelegatorClaimRewards      EventKind = 27
	KindSetSubscriptionPolicy      EventKind = 28

	KindUnidentified EventKind = 1000
	KindParseError   EventKind = 1001
)
