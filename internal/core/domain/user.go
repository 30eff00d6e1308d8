package domain

import "time"

// User est la vue lecture seule d'un utilisateur, utilisée pour hydrater les réponses.
// Le username sert d'identifiant (clé primaire côté SQL).
type User struct {
	Username       string
	Email          string
	FirstName      string
	LastName       string
	Bio            string
	ProfilePicture string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName retombe sur le username quand le nom est vide.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}
