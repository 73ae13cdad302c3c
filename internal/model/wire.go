package model

import (
	"encoding/json"
	"time"
)

// MarshalEnvelope serializes an outbound event exactly once; the resulting
// frame is what gets fanned out to every recipient.
func MarshalEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:   event,
		Payload: raw,
		Ts:      time.Now().UnixMilli(),
	})
}
