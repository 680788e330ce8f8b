package simulation

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/tourist-safety/internal/domain/safety"
	"github.com/oshokin/tourist-safety/internal/events"
	"github.com/oshokin/tourist-safety/internal/machine"
	"github.com/oshokin/tourist-safety/internal/scenario"
)

// Event types carried in the "type" field of Watch messages.
const (
	EventStateChanged      = "state_changed"
	EventNotificationAdded = "notification_added"
	EventPositionChanged   = "position_changed"
)

// FireReply is a decoded Fire response.
type FireReply struct {
	Applied bool
	State   string
	Reason  string
}

// String renders the reply as Applied(state) or Ignored(reason).
func (r FireReply) String() string {
	if r.Applied {
		return "Applied(" + r.State + ")"
	}

	return "Ignored(" + r.Reason + ")"
}

// NewFireRequest builds a Fire request document.
func NewFireRequest(scenarioName, trigger string, actor *safety.Actor) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"scenario": structpb.NewStringValue(scenarioName),
		"trigger":  structpb.NewStringValue(trigger),
	}

	if actor != nil {
		fields["actor"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"hostname": structpb.NewStringValue(actor.Hostname),
			"username": structpb.NewStringValue(actor.Username),
		}})
	}

	return &structpb.Struct{Fields: fields}
}

// ParseFireReply decodes a Fire response document.
func ParseFireReply(reply *structpb.Struct) FireReply {
	fields := reply.GetFields()

	return FireReply{
		Applied: fields["applied"].GetBoolValue(),
		State:   fields["state"].GetStringValue(),
		Reason:  fields["reason"].GetStringValue(),
	}
}

// FormatEvent renders a Watch message as one human readable line.
func FormatEvent(event *structpb.Struct) string {
	fields := event.GetFields()

	at := fields["timestamp"].GetStringValue()
	if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
		at = t.Format(time.TimeOnly)
	}

	prefix := fmt.Sprintf("[%s] %-10s ", at, fields["scenario"].GetStringValue())

	switch fields["type"].GetStringValue() {
	case EventStateChanged:
		return prefix + fmt.Sprintf("%s -> %s on %s by %s",
			fields["from"].GetStringValue(),
			fields["to"].GetStringValue(),
			fields["trigger"].GetStringValue(),
			orUnknown(fields["actor"].GetStringValue()))
	case EventNotificationAdded:
		return prefix + fmt.Sprintf("#%d %s: %s",
			int64(fields["id"].GetNumberValue()),
			strings.ToUpper(fields["category"].GetStringValue()),
			fields["message"].GetStringValue())
	case EventPositionChanged:
		return prefix + fmt.Sprintf("position (%.4f, %.4f)",
			fields["x"].GetNumberValue(),
			fields["y"].GetNumberValue())
	default:
		return prefix + "unknown event"
	}
}

func parseFireRequest(req *structpb.Struct) (string, string, *safety.Actor) {
	fields := req.GetFields()

	var actor *safety.Actor
	if a := fields["actor"].GetStructValue(); a != nil {
		actor = &safety.Actor{
			Hostname: a.GetFields()["hostname"].GetStringValue(),
			Username: a.GetFields()["username"].GetStringValue(),
		}
	}

	return fields["scenario"].GetStringValue(), fields["trigger"].GetStringValue(), actor
}

func encodeResult(r machine.Result) *structpb.Struct {
	reason := ""
	if !r.Applied() {
		reason = r.Reason.String()
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"applied": structpb.NewBoolValue(r.Applied()),
		"state":   structpb.NewStringValue(string(r.State)),
		"reason":  structpb.NewStringValue(reason),
	}}
}

// EncodeSnapshot renders a scenario snapshot as a GetSnapshot document.
func EncodeSnapshot(s scenario.Snapshot) *structpb.Struct {
	triggers := make([]*structpb.Value, 0, len(s.Triggers))
	for _, t := range s.Triggers {
		triggers = append(triggers, structpb.NewStringValue(string(t)))
	}

	notifications := make([]*structpb.Value, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		notifications = append(notifications, structpb.NewStructValue(encodeNotification(n)))
	}

	fields := map[string]*structpb.Value{
		"scenario":      structpb.NewStringValue(s.Scenario),
		"state":         structpb.NewStringValue(string(s.State)),
		"pending":       structpb.NewNumberValue(float64(s.Pending)),
		"triggers":      structpb.NewListValue(&structpb.ListValue{Values: triggers}),
		"notifications": structpb.NewListValue(&structpb.ListValue{Values: notifications}),
	}

	if s.Position != nil {
		fields["position"] = structpb.NewStructValue(encodePosition(*s.Position))
	}

	if s.LastKnown != nil {
		fields["last_known"] = structpb.NewStructValue(encodePosition(*s.LastKnown))
	}

	if s.Zone != "" {
		fields["zone"] = structpb.NewStringValue(s.Zone)
	}

	if s.Credential != nil {
		fields["credential"] = structpb.NewStructValue(encodeCredential(s.Credential))
	}

	return &structpb.Struct{Fields: fields}
}

// EncodeEvent renders an event as a Watch message. Unknown event types report false.
func EncodeEvent(e events.Event) (*structpb.Struct, bool) {
	fields := map[string]*structpb.Value{
		"scenario":  structpb.NewStringValue(e.ScenarioName()),
		"timestamp": structpb.NewStringValue(formatTime(e.OccurredAt())),
	}

	switch e := e.(type) {
	case events.StateChanged:
		fields["type"] = structpb.NewStringValue(EventStateChanged)
		fields["from"] = structpb.NewStringValue(e.From)
		fields["to"] = structpb.NewStringValue(e.To)
		fields["trigger"] = structpb.NewStringValue(e.Trigger)

		if e.Actor != nil {
			fields["actor"] = structpb.NewStringValue(e.Actor.String())
		}
	case events.NotificationAdded:
		fields["type"] = structpb.NewStringValue(EventNotificationAdded)

		for k, v := range encodeNotification(e.Entry).GetFields() {
			fields[k] = v
		}
	case events.PositionChanged:
		fields["type"] = structpb.NewStringValue(EventPositionChanged)

		for k, v := range encodePosition(e.Position).GetFields() {
			fields[k] = v
		}
	default:
		return nil, false
	}

	return &structpb.Struct{Fields: fields}, true
}

func encodeNotification(n safety.Notification) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewNumberValue(float64(n.ID)),
		"category":  structpb.NewStringValue(string(n.Category)),
		"message":   structpb.NewStringValue(n.Message),
		"timestamp": structpb.NewStringValue(formatTime(n.Timestamp)),
	}}
}

func encodePosition(p safety.Position) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"x": structpb.NewNumberValue(p.X),
		"y": structpb.NewNumberValue(p.Y),
	}}
}

func encodeCredential(c *safety.Credential) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"holder":            structpb.NewStringValue(c.HolderName),
		"issued_at":         structpb.NewStringValue(formatTime(c.IssuedAt)),
		"valid_from":        structpb.NewStringValue(c.ValidFrom.Format(time.DateOnly)),
		"valid_to":          structpb.NewStringValue(c.ValidTo.Format(time.DateOnly)),
		"status":            structpb.NewStringValue(string(c.Status)),
		"kyc_type":          structpb.NewStringValue(c.KYCType),
		"kyc_number":        structpb.NewStringValue(c.KYCNumber),
		"emergency_contact": structpb.NewStringValue(c.EmergencyContact),
		"medical_info":      structpb.NewStringValue(c.MedicalInfo),
		"block_id":          structpb.NewNumberValue(float64(c.BlockID)),
		"block_hash":        structpb.NewStringValue(c.BlockHash),
	}}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func orUnknown(s string) string {
	if s == "" {
		return "<unknown>"
	}

	return s
}
