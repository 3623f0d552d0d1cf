package event

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// CloudEvents extension attribute names. Extension names must be lowercase
// alphanumeric.
const (
	ExtCorrelationID = "correlationid"
	ExtCausationID   = "causationid"
)

// ToCloudEvent converts evt into a CloudEvents v1.0 envelope so external
// collaborators can consume it. The payload is carried as JSON data.
func ToCloudEvent(evt Event) (cloudevents.Event, error) {
	if err := evt.Validate(); err != nil {
		return cloudevents.Event{}, err
	}

	ce := cloudevents.NewEvent()
	ce.SetID(evt.ID)
	ce.SetType(evt.Topic)
	ce.SetSource(evt.SourceID)
	ce.SetTime(evt.Timestamp)
	if evt.CorrelationID != "" {
		ce.SetExtension(ExtCorrelationID, evt.CorrelationID)
	}
	if evt.CausationID != "" {
		ce.SetExtension(ExtCausationID, evt.CausationID)
	}
	if err := ce.SetData(cloudevents.ApplicationJSON, evt.Data()); err != nil {
		return cloudevents.Event{}, &EventError{Event: evt, Message: "encode cloudevent data", Err: err}
	}
	if err := ce.Validate(); err != nil {
		return cloudevents.Event{}, &EventError{Event: evt, Message: "invalid cloudevent", Err: err}
	}
	return ce, nil
}

// FromCloudEvent converts a CloudEvents envelope into an Event. Data is
// decoded as JSON into Fields; typed payload variants are not reconstructed.
func FromCloudEvent(ce cloudevents.Event) (Event, error) {
	evt := Event{
		ID:        ce.ID(),
		Topic:     ce.Type(),
		SourceID:  ce.Source(),
		Timestamp: ce.Time(),
		Payload:   Fields{},
	}

	ext := ce.Extensions()
	if v, ok := ext[ExtCorrelationID]; ok {
		evt.CorrelationID = fmt.Sprint(v)
	}
	if v, ok := ext[ExtCausationID]; ok {
		evt.CausationID = fmt.Sprint(v)
	}

	if len(ce.Data()) > 0 {
		fields := Fields{}
		if err := ce.DataAs(&fields); err != nil {
			return Event{}, &EventError{Event: evt, Message: "decode cloudevent data", Err: err}
		}
		evt.Payload = fields
	}

	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}
