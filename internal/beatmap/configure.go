package beatmap

import (
	"reflect"

	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
)

// FilterUpdate is a partial filter change, as posted by the admin API. Nil
// fields leave the current value in place.
type FilterUpdate struct {
	PlayMode   *string   `json:"play_mode"`
	Star       *Range    `json:"star"`
	AR         *Range    `json:"ar"`
	CS         *Range    `json:"cs"`
	Length     *IntRange `json:"length"`
	BPM        *IntRange `json:"bpm"`
	RankStatus *[]string `json:"rank_status"`
	Genre      *string   `json:"genre"`
	Language   *string   `json:"language"`
}

// apply validates every named enum before committing anything, so a bad
// update never leaves the filters half-changed.
func (u FilterUpdate) apply(current Filters) (Filters, bool, error) {
	next := current
	next.RankStatus = append([]osu.RankStatus(nil), current.RankStatus...)

	if u.PlayMode != nil {
		mode, err := osu.ParsePlayMode(*u.PlayMode)
		if err != nil {
			return current, false, err
		}
		next.PlayMode = mode
	}
	if u.Genre != nil {
		genre, err := osu.ParseGenre(*u.Genre)
		if err != nil {
			return current, false, err
		}
		next.Genre = genre
	}
	if u.Language != nil {
		lang, err := osu.ParseLanguage(*u.Language)
		if err != nil {
			return current, false, err
		}
		next.Language = lang
	}
	if u.RankStatus != nil {
		statuses := make([]osu.RankStatus, 0, len(*u.RankStatus))
		for _, name := range *u.RankStatus {
			status, err := osu.ParseRankStatus(name)
			if err != nil {
				return current, false, err
			}
			statuses = append(statuses, status)
		}
		next.RankStatus = statuses
	}

	if u.Star != nil {
		next.Star = *u.Star
	}
	if u.AR != nil {
		next.AR = *u.AR
	}
	if u.CS != nil {
		next.CS = *u.CS
	}
	if u.Length != nil {
		next.Length = *u.Length
	}
	if u.BPM != nil {
		next.BPM = *u.BPM
	}

	return next, !reflect.DeepEqual(current, next), nil
}
