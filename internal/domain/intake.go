package domain

import "time"

type Contact struct {
	ContactID string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created"`
}

type Registration struct {
	RegistrationID string    `json:"id"`
	FullName       string    `json:"full_name"`
	MobileNumber   string    `json:"mobile_number"`
	Subject        string    `json:"subject"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created"`
}

// StartupApplication is one submission of the startup-pitch programme.
// Optional answers are nil when the gating question was not answered "Yes".
type StartupApplication struct {
	ApplicationID           string    `json:"id"`
	FullNameFounder         string    `json:"full_name_founder"`
	Gender                  string    `json:"gender"`
	Age                     string    `json:"age"`
	StartupName             string    `json:"startup_name"`
	Location                string    `json:"location"`
	Mobile                  string    `json:"mobile"`
	Email                   string    `json:"email"`
	Education               string    `json:"education"`
	Stage                   string    `json:"stage"`
	Sector                  string    `json:"sector"`
	Description             string    `json:"description"`
	Challenge               string    `json:"challenge"`
	Problem                 string    `json:"problem"`
	TargetMarket            string    `json:"target_market"`
	UVP                     string    `json:"uvp"`
	HasTeam                 string    `json:"has_team"`
	TeamDetails             *string   `json:"team_details"`
	HasRevenue              string    `json:"has_revenue"`
	MRR                     *string   `json:"mrr"`
	HasIP                   string    `json:"has_ip"`
	IsRaising               string    `json:"is_raising"`
	RaiseAmount             *string   `json:"raise_amount"`
	PreviousFunding         string    `json:"previous_funding"`
	LongTermVision          string    `json:"long_term_vision"`
	PitchDeck               PitchDeck `json:"pitch_deck"`
	ConfirmAccurate         bool      `json:"confirm_accurate"`
	ConfirmDisqualification bool      `json:"confirm_disqualification"`
	ConfirmContact          bool      `json:"confirm_contact"`
	CreatedAt               time.Time `json:"created"`
}
