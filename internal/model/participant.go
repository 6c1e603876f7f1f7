package model

import "time"

const (
	TypeDelegate    = "Delegate"
	TypeAdvisor     = "Advisor"
	TypeStaff       = "Staff"
	TypeSecretariat = "Secretariat"
)

// ParticipantTypes lists the valid category tags in display order.
var ParticipantTypes = []string{TypeDelegate, TypeAdvisor, TypeStaff, TypeSecretariat}

func ValidParticipantType(t string) bool {
	for _, pt := range ParticipantTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// Participant is a conference attendee reachable by phone. Phone is always
// stored in the normalized +1XXXXXXXXXX form.
type Participant struct {
	ID              int64
	ConferenceID    int64
	FirstName       string
	LastName        string
	Phone           string
	ParticipantType string
	CreatedAt       time.Time
}

func (p Participant) FullName() string {
	return p.FirstName + " " + p.LastName
}
