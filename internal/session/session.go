// Package session holds the identity shared between attendr windows: the
// signed-in user and the OAuth2 token material issued for them.
package session

import "golang.org/x/oauth2"

// User is the account the HR backend reports for a bearer token.
type User struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Department  string   `json:"department,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// PublicUser is the minimal shape that may cross window boundaries.
type PublicUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Public strips everything but the public identity fields.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// User widens a public user back into a User with no privileged fields.
func (p PublicUser) User() User {
	return User{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
}

// Record is the session shared by every window: created on login, updated
// on token refresh and destroyed on logout from any window.
type Record struct {
	User  User          `json:"user"`
	Token *oauth2.Token `json:"token"`
}

// Active reports whether the record carries a usable identity.
func (r *Record) Active() bool {
	return r != nil && r.User.ID != 0 && r.Token != nil && r.Token.AccessToken != ""
}
