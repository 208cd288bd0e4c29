package room

// Roster is an insertion-ordered set of usernames. Order is host-rotation
// order; Add ignores duplicates and Remove ignores absentees. Not safe for
// concurrent use; the owning Room serializes access.
type Roster struct {
	order   []string
	members map[string]struct{}
}

func NewRoster() *Roster {
	return &Roster{members: make(map[string]struct{})}
}

// Add appends a username unless it is already present.
func (r *Roster) Add(username string) bool {
	if _, ok := r.members[username]; ok {
		return false
	}
	r.members[username] = struct{}{}
	r.order = append(r.order, username)
	return true
}

// Remove deletes a username, keeping the order of everyone else.
func (r *Roster) Remove(username string) bool {
	if _, ok := r.members[username]; !ok {
		return false
	}
	delete(r.members, username)
	for i, name := range r.order {
		if name == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Roster) Contains(username string) bool {
	_, ok := r.members[username]
	return ok
}

// Head is the current host under auto-host policy.
func (r *Roster) Head() (string, bool) {
	if len(r.order) == 0 {
		return "", false
	}
	return r.order[0], true
}

// RotateToTail moves the head to the back and returns the new head.
func (r *Roster) RotateToTail() (string, bool) {
	if len(r.order) == 0 {
		return "", false
	}
	head := r.order[0]
	r.order = append(r.order[1:], head)
	return r.order[0], true
}

func (r *Roster) Len() int { return len(r.order) }

// List returns the usernames in rotation order.
func (r *Roster) List() []string {
	return append([]string(nil), r.order...)
}

func (r *Roster) Clear() {
	r.order = nil
	r.members = make(map[string]struct{})
}
