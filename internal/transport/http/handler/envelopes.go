package handler

import (
	"encoding/json"
	"net/http"

	"github.com/unifiro-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// AccountSummary is what a client learns about an account at login.
type AccountSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type LoginEnvelope struct {
	Message string         `json:"message"`
	User    AccountSummary `json:"user"`
}

// ProfileView is the authenticated account as returned by /me.
type ProfileView struct {
	ID        string                   `json:"id"`
	Kind      domain.AccountKind       `json:"kind"`
	Email     string                   `json:"email"`
	Mobile    string                   `json:"mobile"`
	Verified  bool                     `json:"verified"`
	User      *domain.UserProfile      `json:"user,omitempty"`
	Organizer *domain.OrganizerProfile `json:"organizer,omitempty"`
}

func toProfileView(a *domain.Account) ProfileView {
	return ProfileView{
		ID:        a.AccountID,
		Kind:      a.Kind,
		Email:     a.Email,
		Mobile:    a.Mobile,
		Verified:  a.Verified,
		User:      a.User,
		Organizer: a.Organizer,
	}
}

// created is the data of a 201 reply for a stored intake record.
type created struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}

// decodeJSON reads a JSON body. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
