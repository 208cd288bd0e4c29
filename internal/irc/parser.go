package irc

import (
	"strconv"
	"strings"
)

// Event is one parsed protocol line.
type Event struct {
	Sender  string
	Command string
	Channel string
	Message string
}

// Slot is one parsed "!mp settings" roster line.
type Slot struct {
	Slot     int
	Status   string
	UserID   string
	Username string
	Roles    []string
}

// Bancho appends these to the sender segment of event lines.
var senderSuffixes = []string{"!cho@ppy.sh", "!cho@cho.ppy.sh"}

// JOIN/PART/QUIT lines carry no channel segment.
var noChannelCommands = map[string]bool{"JOIN": true, "PART": true, "QUIT": true}

// validRoles is the vocabulary Bancho prints inside the bracketed suffix of a
// slot line. Anything outside it means the brackets belong to the username.
var validRoles = map[string]bool{
	"Host":        true,
	"TeamBlue":    true,
	"TeamRed":     true,
	"Hidden":      true,
	"HardRock":    true,
	"SuddenDeath": true,
	"Flashlight":  true,
	"SpunOut":     true,
	"NoFail":      true,
	"Easy":        true,
	"Relax":       true,
	"Relax2":      true,
}

// NormalizeUsername trims and replaces inner spaces with underscores, the form
// Bancho uses in event text.
func NormalizeUsername(username string) string {
	return strings.ReplaceAll(strings.TrimSpace(username), " ", "_")
}

// ParseEvent turns a raw ":<sender> <COMMAND> <channel> :<message>" line into
// an Event. Returns false for anything that doesn't match the grammar.
func ParseEvent(line string) (Event, bool) {
	words := strings.Split(strings.TrimSpace(line), " ")

	if len(words) < 3 || !strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	sender := words[0][1:]
	for _, suffix := range senderSuffixes {
		sender = strings.TrimSuffix(sender, suffix)
	}

	command := words[1]
	channel := words[2]
	var message string

	if noChannelCommands[command] {
		channel = ""
		message = strings.Join(words[2:], " ")
	} else {
		message = strings.Join(words[3:], " ")
	}

	message = strings.TrimPrefix(message, ":")

	return Event{Sender: sender, Command: command, Channel: channel, Message: message}, true
}

// ParseSlot parses "Slot <n> <status...> <profile-url> <username>[ [roles]]".
// Status is "Ready" or the two words preceding the url. A trailing bracketed
// group is only treated as roles when every entry is in the known vocabulary;
// otherwise it stays part of the username.
func ParseSlot(line string) (Slot, bool) {
	words := strings.Fields(line)
	if len(words) < 4 {
		return Slot{}, false
	}

	var status, url, userAndRoles string
	if words[2] != "Ready" {
		if len(words) < 6 {
			return Slot{}, false
		}
		status = strings.Join(words[2:4], " ")
		url = words[4]
		userAndRoles = strings.Join(words[5:], " ")
	} else {
		status = words[2]
		url = words[3]
		userAndRoles = strings.Join(words[4:], " ")
	}

	username := userAndRoles
	var roles []string
	start := strings.LastIndex(userAndRoles, "[")

	if strings.HasSuffix(userAndRoles, "]") && start != -1 {
		username = userAndRoles[:max(start-1, 0)]
		packed := strings.ReplaceAll(userAndRoles[start+1:len(userAndRoles)-1], " ", "")
		roles = strings.Split(packed, "/")
		last := roles[len(roles)-1]
		roles = append(roles[:len(roles)-1], strings.Split(last, ",")...)

		for _, role := range roles {
			if !validRoles[role] {
				username = userAndRoles
				roles = nil
				break
			}
		}
	}

	urlParts := strings.Split(url, "/")
	slotNum, _ := strconv.Atoi(words[1])

	return Slot{
		Slot:     slotNum,
		Status:   status,
		UserID:   urlParts[len(urlParts)-1],
		Username: NormalizeUsername(username),
		Roles:    roles,
	}, true
}

// BeatmapIDFromURL extracts the difficulty id from an osu beatmap url,
// the last path segment (any "#<mode>" fragment stripped).
func BeatmapIDFromURL(url string) int {
	parts := strings.Split(url, "/")
	id, _ := strconv.Atoi(strings.SplitN(parts[len(parts)-1], "#", 2)[0])
	return id
}

// BeatmapsetIDFromURL extracts the set id, the second-to-last path segment.
func BeatmapsetIDFromURL(url string) int {
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return 0
	}
	id, _ := strconv.Atoi(strings.SplitN(parts[len(parts)-2], "#", 2)[0])
	return id
}
