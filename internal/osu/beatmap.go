package osu

import "fmt"

// Beatmap is one difficulty of a beatmapset, carrying the fields the bot
// filters on. The set-level Title/Artist are denormalized onto it for display.
type Beatmap struct {
	ID           int        `json:"id"`
	BeatmapsetID int        `json:"beatmapset_id"`
	Mode         PlayMode   `json:"mode"`
	Star         float64    `json:"difficulty_rating"`
	AR           float64    `json:"ar"`
	CS           float64    `json:"cs"`
	BPM          float64    `json:"bpm"`
	TotalLength  int        `json:"total_length"`
	Status       RankStatus `json:"status"`
	Version      string     `json:"version"`
	Title        string     `json:"title"`
	Artist       string     `json:"artist"`
	URL          string     `json:"url"`
}

// Beatmapset is the parent record; the bot only reads its id, display
// metadata, the genre/language tags, and the contained difficulties.
type Beatmapset struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Genre    Genre     `json:"genre"`
	Language Language  `json:"language"`
	Beatmaps []Beatmap `json:"beatmaps"`
}

// BeatmapURL is the canonical difficulty page address.
func BeatmapURL(setID, beatmapID int) string {
	return fmt.Sprintf("https://osu.ppy.sh/beatmapsets/%d#osu/%d", setID, beatmapID)
}
