package events

import (
	"strings"

	"github.com/lavanet/lava-indexer/internal/models"
)

// projectOwner extracts the subscription owner from a project id of
// the form "<owner-address>-<project-name>".
func projectOwner(project *string) *string {
	if project == nil {
		return nil
	}
	owner := strings.SplitN(*project, "-", 2)[0]
	if !ValidAddress(owner) {
		return nil
	}
	return &owner
}

func parseProjectKeyEvent(kind models.EventKind) ParseFunc {
	return func(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
		project := attrs.Str("project")
		consumer := projectOwner(project)
		if consumer != nil {
			cs.AddConsumer(*consumer)
		}

		cs.Events = append(cs.Events, models.Event{
			Kind:     kind,
			T1:       project,
			T2:       attrs.Str("key"),
			I1:       attrs.Int("keytype"),
			I2:       attrs.Int("block"),
			Consumer: consumer,
			Height:   ctx.Height,
			TxHash:   ctx.TxHash,
			Fulltext: attrs.Fulltext(),
		})
		return nil
	}
}

var (
	parseAddKeyToProject   = parseProjectKeyEvent(models.KindAddKeyToProject)
	parseDelKeyFromProject = parseProjectKeyEvent(models.KindDelKeyFromProject)
)

func parseProjectSubscriptionEvent(kind models.EventKind) ParseFunc {
	return func(ctx Ctx, attrs Attrs, cs *ChangeSet) error {
		consumer := attrs.Str("subscription")
		if consumer != nil && ValidAddress(*consumer) {
			cs.AddConsumer(*consumer)
		}

		cs.Events = append(cs.Events, models.Event{
			Kind:     kind,
			T1:       attrs.Str("projectName"),
			Consumer: consumer,
			Height:   ctx.Height,
			TxHash:   ctx.TxHash,
			Fulltext: attrs.Fulltext(),
		})
		return nil
	}
}

var (
	parseAddProjectToSubscription = parseProjectSubscriptionEvent(models.KindAddProjectToSubscription)
	parseDelProjectToSubscription = parseProjectSubscriptionEvent(models.KindDelProjectToSubscription)
)
