package osu

import "errors"

var ErrUnknownBotMode = errors.New("unknown bot mode")
var ErrUnknownPlayMode = errors.New("unknown play mode")
var ErrUnknownTeamMode = errors.New("unknown team mode")
var ErrUnknownScoreMode = errors.New("unknown score mode")
var ErrUnknownRankStatus = errors.New("unknown rank status")
var ErrUnknownGenre = errors.New("unknown genre")
var ErrUnknownLanguage = errors.New("unknown language")

// BotMode selects which rotation policy a room enforces.
type BotMode string

const (
	AutoHost      BotMode = "AutoHost"
	AutoRotateMap BotMode = "AutoRotateMap"
)

func ParseBotMode(name string) (BotMode, error) {
	switch BotMode(name) {
	case AutoHost, AutoRotateMap:
		return BotMode(name), nil
	}
	return "", ErrUnknownBotMode
}

func BotModes() []string { return []string{string(AutoHost), string(AutoRotateMap)} }

// TeamMode is Bancho's team arrangement, passed as its numeric value in
// "!mp set <team> <score> <size>".
type TeamMode int

const (
	HeadToHead TeamMode = 0
	TagCoop    TeamMode = 1
	TeamVs     TeamMode = 2
	TagTeamVs  TeamMode = 3
)

var teamModeNames = map[TeamMode]string{
	HeadToHead: "HeadToHead",
	TagCoop:    "TagCoop",
	TeamVs:     "TeamVs",
	TagTeamVs:  "TagTeamVs",
}

func (m TeamMode) Name() string { return teamModeNames[m] }

func ParseTeamMode(name string) (TeamMode, error) {
	for mode, n := range teamModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, ErrUnknownTeamMode
}

func TeamModes() []string { return enumNames(teamModeNames) }

// ScoreMode is Bancho's win condition.
type ScoreMode int

const (
	Score    ScoreMode = 0
	Accuracy ScoreMode = 1
	Combo    ScoreMode = 2
	ScoreV2  ScoreMode = 3
)

var scoreModeNames = map[ScoreMode]string{
	Score:    "Score",
	Accuracy: "Accuracy",
	Combo:    "Combo",
	ScoreV2:  "ScoreV2",
}

func (m ScoreMode) Name() string { return scoreModeNames[m] }

func ParseScoreMode(name string) (ScoreMode, error) {
	for mode, n := range scoreModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, ErrUnknownScoreMode
}

func ScoreModes() []string { return enumNames(scoreModeNames) }

// PlayMode is the ruleset, passed as its numeric value in "!mp map <id> <mode>".
type PlayMode int

const (
	Osu   PlayMode = 0
	Taiko PlayMode = 1
	Catch PlayMode = 2
	Mania PlayMode = 3
)

var playModeNames = map[PlayMode]string{
	Osu:   "Osu",
	Taiko: "Taiko",
	Catch: "Catch",
	Mania: "Mania",
}

func (m PlayMode) Name() string { return playModeNames[m] }

func ParsePlayMode(name string) (PlayMode, error) {
	for mode, n := range playModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, ErrUnknownPlayMode
}

func PlayModes() []string { return enumNames(playModeNames) }

// RankStatus mirrors the provider's ranked-status codes.
type RankStatus int

const (
	Graveyard RankStatus = -2
	WIP       RankStatus = -1
	Pending   RankStatus = 0
	Ranked    RankStatus = 1
	Approved  RankStatus = 2
	Qualified RankStatus = 3
	Loved     RankStatus = 4
)

var rankStatusNames = map[RankStatus]string{
	Graveyard: "Graveyard",
	WIP:       "WIP",
	Pending:   "Pending",
	Ranked:    "Ranked",
	Approved:  "Approved",
	Qualified: "Qualified",
	Loved:     "Loved",
}

func (s RankStatus) Name() string { return rankStatusNames[s] }

func ParseRankStatus(name string) (RankStatus, error) {
	for status, n := range rankStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, ErrUnknownRankStatus
}

func RankStatuses() []string { return enumNames(rankStatusNames) }

// AllRankStatuses is the selector's default allow-list: everything.
func AllRankStatuses() []RankStatus {
	statuses := make([]RankStatus, 0, len(rankStatusNames))
	for status := range rankStatusNames {
		statuses = append(statuses, status)
	}
	return statuses
}

// Genre is the beatmapset search genre filter. AnyGenre disables the check.
type Genre int

const (
	AnyGenre    Genre = 0
	Unspecified Genre = 1
	VideoGame   Genre = 2
	Anime       Genre = 3
	Rock        Genre = 4
	Pop         Genre = 5
	Other       Genre = 6
	Novelty     Genre = 7
	HipHop      Genre = 9
	Electronic  Genre = 10
	Metal       Genre = 11
	Classical   Genre = 12
	Folk        Genre = 13
	Jazz        Genre = 14
)

var genreNames = map[Genre]string{
	AnyGenre:    "Any",
	Unspecified: "Unspecified",
	VideoGame:   "VideoGame",
	Anime:       "Anime",
	Rock:        "Rock",
	Pop:         "Pop",
	Other:       "Other",
	Novelty:     "Novelty",
	HipHop:      "HipHop",
	Electronic:  "Electronic",
	Metal:       "Metal",
	Classical:   "Classical",
	Folk:        "Folk",
	Jazz:        "Jazz",
}

func (g Genre) Name() string { return genreNames[g] }

func ParseGenre(name string) (Genre, error) {
	for genre, n := range genreNames {
		if n == name {
			return genre, nil
		}
	}
	return 0, ErrUnknownGenre
}

func Genres() []string { return enumNames(genreNames) }

// Language is the beatmapset search language filter. AnyLanguage disables it.
type Language int

const (
	AnyLanguage  Language = 0
	EnglishLang  Language = 2
	JapaneseLang Language = 3
	ChineseLang  Language = 4
	InstrLang    Language = 5
	KoreanLang   Language = 6
	FrenchLang   Language = 7
	GermanLang   Language = 8
	SwedishLang  Language = 9
	SpanishLang  Language = 10
	ItalianLang  Language = 11
	RussianLang  Language = 12
	PolishLang   Language = 13
	OtherLang    Language = 14
)

var languageNames = map[Language]string{
	AnyLanguage:  "Any",
	EnglishLang:  "English",
	JapaneseLang: "Japanese",
	ChineseLang:  "Chinese",
	InstrLang:    "Instrumental",
	KoreanLang:   "Korean",
	FrenchLang:   "French",
	GermanLang:   "German",
	SwedishLang:  "Swedish",
	SpanishLang:  "Spanish",
	ItalianLang:  "Italian",
	RussianLang:  "Russian",
	PolishLang:   "Polish",
	OtherLang:    "Other",
}

func (l Language) Name() string { return languageNames[l] }

func ParseLanguage(name string) (Language, error) {
	for lang, n := range languageNames {
		if n == name {
			return lang, nil
		}
	}
	return 0, ErrUnknownLanguage
}

func Languages() []string { return enumNames(languageNames) }

func enumNames[K comparable](names map[K]string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return out
}
