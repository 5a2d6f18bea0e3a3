package core

import "encoding/json"

// Envelope is the single frame shape in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Ack  *int64          `json:"ack,omitempty"`
}

const EventAck = "ack"

// AckResponse is what a caller's acknowledgment callback receives.
type AckResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Ack answers one inbound event. A nil Ack means the caller did not ask.
type Ack func(AckResponse)

// Reply invokes ack when present.
func (a Ack) Reply(resp AckResponse) {
	if a != nil {
		a(resp)
	}
}

func Encode(event string, data any) (Frame, error) {
	env := Envelope{Type: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func EncodeAck(id int64, resp AckResponse) (Frame, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: EventAck, Data: raw, Ack: &id})
}
