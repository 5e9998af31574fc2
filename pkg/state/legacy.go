package state

import (
	"time"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// document is the on-disk shape accepted by Load. It is a superset of
// RunState that also understands the older layout, which kept topic keys
// under "bots" and notification keys under "seenNotifications".
type document struct {
	Version          int                               `json:"version"`
	LastRunTimestamp *time.Time                        `json:"last_run_timestamp"`
	PerPersona       map[types.PersonaID]*PersonaState `json:"per_persona"`

	LastRunUTC        *time.Time                    `json:"lastRunUtc"`
	Bots              map[types.PersonaID]legacyBot `json:"bots"`
	SeenNotifications map[types.PersonaID][]string  `json:"seenNotifications"`
}

type legacyBot struct {
	Seen      []string `json:"seen"`
	RepliedTo []string `json:"repliedTo"`
}

func (d *document) isLegacy() bool {
	return d.PerPersona == nil && (d.Bots != nil || d.SeenNotifications != nil)
}

// migrateLegacy folds the older layout into st. Legacy lists are
// newest-first, so they are replayed from the back.
func migrateLegacy(st *RunState, d *document) {
	// seenNotifications is the fuller log; repliedTo only fills gaps.
	for id, keys := range d.SeenNotifications {
		replay(st.persona(id, 0, 0).AnsweredNotificationKeys, keys)
	}
	for id, bot := range d.Bots {
		ps := st.persona(id, 0, 0)
		replay(ps.SeenTopicKeys, bot.Seen)
	}
	// repliedTo gaps are older than anything in seenNotifications.
	for id, bot := range d.Bots {
		set := st.persona(id, 0, 0).AnsweredNotificationKeys
		for _, k := range bot.RepliedTo {
			set.Append(k)
		}
	}
}

func replay(set *KeySet, newestFirst []string) {
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if !set.Contains(newestFirst[i]) {
			set.Insert(newestFirst[i])
		}
	}
}
