package model

import (
	"time"

	"github.com/ppiankov/patientsim/internal/nlu"
)

// Position is where a conversation is in the encounter flow
type Position int

const (
	PositionNone      Position = 0  // no case selected yet
	PositionInterview Position = 1  // interviewing the patient
	PositionClosed    Position = -1 // encounter ended
)

func (p Position) String() string {
	switch p {
	case PositionNone:
		return "none"
	case PositionInterview:
		return "interview"
	case PositionClosed:
		return "closed"
	}
	return "unknown"
}

// Conversation is the per-conversation metadata a store keeps
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	PatientID string    `json:"patient_id,omitempty" bson:"patient_id,omitempty"`
	UserName  string    `json:"user_name,omitempty" bson:"user_name,omitempty"`
	Position  Position  `json:"position" bson:"position"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// TurnEntry is one line of the append-only turn log
type TurnEntry struct {
	ID             string       `json:"id" bson:"_id"`
	ConversationID string       `json:"conversation_id" bson:"conversation_id"`
	Query          string       `json:"query" bson:"query"`
	AlteredQuery   string       `json:"altered_query,omitempty" bson:"altered_query,omitempty"`
	Intents        []nlu.Intent `json:"intents,omitempty" bson:"intents,omitempty"` // top 3
	Entities       nlu.Entities `json:"entities,omitempty" bson:"entities,omitempty"`
	Handler        string       `json:"handler,omitempty" bson:"handler,omitempty"`
	Response       string       `json:"response,omitempty" bson:"response,omitempty"`
	Error          string       `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
}

// Issue is a problem report typed by the user with "ERROR: ..."
type Issue struct {
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Message        string    `json:"message" bson:"message"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}
