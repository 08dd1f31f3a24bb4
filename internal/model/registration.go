package model

import (
	"encoding/json"
	"time"
)

// Registration is the validated payload held in the pending store between
// the register call and OTP verification.
type Registration struct {
	TeamName      string              `json:"team_name" validate:"required,min=2,max=100"`
	LeaderName    string              `json:"leader_name" validate:"required,min=2,max=100"`
	LeaderEmail   string              `json:"leader_email" validate:"required,email"`
	LeaderPhone   string              `json:"leader_phone" validate:"required,min=10,max=20"`
	CollegeName   string              `json:"college_name" validate:"required,min=2,max=100"`
	Year          string              `json:"year" validate:"required,min=1,max=50"`
	Domain        string              `json:"domain" validate:"required,min=1,max=50"`
	TeamMembers   []RegistrationEntry `json:"team_members" validate:"required,min=1,max=50,dive"`
	TermsAccepted bool                `json:"terms_accepted" validate:"required,eq=true"`
}

type RegistrationEntry struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=10,max=20"`
	IsTeamLeader bool   `json:"is_team_leader"`
}

// VerifyOTPRequest finishes the two-phase registration.
type VerifyOTPRequest struct {
	LeaderEmail string `json:"leader_email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

// RegisterResult is the register response body. OTP is only populated when
// mail delivery is unconfigured and the dev-mode flag is on.
type RegisterResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ExpiresInSec int    `json:"expires_in_sec"`
	OTP          string `json:"otp,omitempty"`
}

// QRPayload is the JSON string embedded in each ID card's QR code.
type QRPayload struct {
	TeamCode        string `json:"team_code"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	IsTeamLeader    bool   `json:"is_team_leader"`
	Timestamp       string `json:"timestamp"`
}

func NewQRPayload(teamCode string, m *Member, now time.Time) QRPayload {
	return QRPayload{
		TeamCode:        teamCode,
		ParticipantID:   m.ParticipantID,
		ParticipantName: m.Name,
		IsTeamLeader:    m.IsTeamLeader,
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
}

func (p QRPayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}
