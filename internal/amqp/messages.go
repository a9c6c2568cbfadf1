package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"weddingsync/internal/core"
)

// ProfileChangedMessage announces a committed change to one profile. It
// carries no data; consumers read the current state themselves.
type ProfileChangedMessage struct {
	ProfileID string    `json:"profileId"`
	Revision  int64     `json:"revision"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingProfile = errors.New("message without profileId")

func NewProfileChangedMessage(ev core.ChangeEvent) *ProfileChangedMessage {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ProfileChangedMessage{
		ProfileID: ev.ProfileID,
		Revision:  ev.Revision,
		Reason:    ev.Reason,
		Timestamp: ts.UTC(),
	}
}

func (m *ProfileChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ProfileChangedMessageFromJSON(data []byte) (*ProfileChangedMessage, error) {
	var msg ProfileChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ProfileID == "" {
		return nil, errMissingProfile
	}
	return &msg, nil
}
