// Package services holds the mutation use-cases of the core. Every entry
// point takes the acting user id explicitly; nothing here reaches into
// ambient session state.
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madgroup31/teamon-sub001/models"
)

// taskFieldWatch is one entry of the fixed audit watch-list: which task
// field it covers, how to detect a change and how to phrase it. The texts
// are hand-authored on purpose; this is not a generic object diff.
type taskFieldWatch struct {
	icon    models.HistoryIcon
	changed func(old, updated *models.Task) bool
	render  func(actorName string, updated *models.Task) string
}

var taskWatchList = []taskFieldWatch{
	{
		icon:    models.IconTitle,
		changed: func(o, n *models.Task) bool { return o.TaskName != n.TaskName },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s changed the title to \"%s\"", actor, n.TaskName)
		},
	},
	{
		icon:    models.IconDescription,
		changed: func(o, n *models.Task) bool { return o.Description != n.Description },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s updated the description", actor)
		},
	},
	{
		icon:    models.IconTag,
		changed: func(o, n *models.Task) bool { return o.Tag != n.Tag },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s set the tag to \"%s\"", actor, n.Tag)
		},
	},
	{
		icon:    models.IconStatus,
		changed: func(o, n *models.Task) bool { return o.Status != n.Status },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s moved the task to %s", actor, n.Status)
		},
	},
	{
		icon:    models.IconEndDate,
		changed: func(o, n *models.Task) bool { return !o.EndDate.Equal(n.EndDate) },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s moved the end date to %s", actor, n.EndDate.Format("2006-01-02"))
		},
	},
	{
		icon:    models.IconCollaborators,
		changed: func(o, n *models.Task) bool { return !sameMembers(o.ListUser, n.ListUser) },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s changed the collaborators", actor)
		},
	},
	{
		icon:    models.IconPriority,
		changed: func(o, n *models.Task) bool { return o.Priority != n.Priority },
		render: func(actor string, n *models.Task) string {
			return fmt.Sprintf("%s set the priority to %s", actor, n.Priority)
		},
	},
}

// diffTask produces one History record per watched field whose value
// actually changed, in watch-list order. Unchanged fields produce nothing.
func diffTask(actorID, actorName string, old, updated *models.Task, now time.Time) []models.History {
	var records []models.History
	for _, watch := range taskWatchList {
		if !watch.changed(old, updated) {
			continue
		}
		records = append(records, models.History{
			ID:        uuid.NewString(),
			Text:      watch.render(actorName, updated),
			Icon:      watch.icon,
			User:      actorID,
			Timestamp: now,
		})
	}
	return records
}

// creationRecord is the single audit entry every new task starts with.
func creationRecord(actorID, actorName string, task *models.Task, now time.Time) models.History {
	return models.History{
		ID:        uuid.NewString(),
		Text:      fmt.Sprintf("%s created task \"%s\"", actorName, task.TaskName),
		Icon:      models.IconCreation,
		User:      actorID,
		Timestamp: now,
	}
}

// sameMembers compares two id lists as sets.
func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
