package models

import "time"

// Alert is one normalized NWS alert. Every field is text; fields the feed did
// not provide hold "null". JSON names match the sensor attribute keys.
type Alert struct {
	Area                string `json:"area"`
	Certainty           string `json:"certainty"`
	Description         string `json:"description"`
	Ends                string `json:"ends"`
	Event               string `json:"event"`
	Instruction         string `json:"instruction"`
	Response            string `json:"response"`
	Sent                string `json:"sent"`
	Severity            string `json:"severity"`
	Title               string `json:"title"`
	Urgency             string `json:"urgency"`
	NWSHeadline         string `json:"NWSheadline"`
	HailSize            string `json:"hailSize"`
	WindGust            string `json:"windGust"`
	WaterspoutDetection string `json:"waterspoutDetection"`
	Effective           string `json:"effective"`
	Expires             string `json:"expires"`
	EndsExpires         string `json:"endsExpires"`
	Onset               string `json:"onset"`
	Status              string `json:"status"`
	MessageType         string `json:"messageType"`
	Category            string `json:"category"`
	Sender              string `json:"sender"`
	SenderName          string `json:"senderName"`
	ID                  string `json:"id"`
}

// Snapshot is the complete result of one successful poll. It is never
// mutated after publication; each poll replaces it wholesale.
type Snapshot struct {
	FeedID    string    `json:"feed_id"`
	StateCode string    `json:"state_code"`
	Count     int       `json:"count"`
	Alerts    []Alert   `json:"alerts"`
	UpdatedAt time.Time `json:"updated_at"`
}
