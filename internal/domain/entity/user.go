package entity

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
	Online    bool   `json:"online"`
}

// DisplayName prefers the full name over the bare name field; falls back to
// the user id so list rows never render blank.
func (u User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName == "" {
			return u.LastName
		}
		if u.LastName == "" {
			return u.FirstName
		}
		return u.FirstName + " " + u.LastName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
