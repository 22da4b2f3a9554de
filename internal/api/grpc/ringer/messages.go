package ringer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
)

// Request and response field names.
const (
	FieldName          = "name"
	FieldNumber        = "number"
	FieldRingtone      = "ringtone"
	FieldVolume        = "volume"
	FieldOnlyVibrate   = "only_vibrate"
	FieldDelayMS       = "delay_ms"
	FieldPhase         = "phase"
	FieldSender        = "sender"
	FieldBody          = "body"
	FieldPackage       = "package"
	FieldKey           = "key"
	FieldExtras        = "extras"
	FieldContacts      = "contacts"
	FieldContact       = "contact"
	FieldActor         = "actor"
	FieldHostname      = "hostname"
	FieldUsername      = "username"
	FieldState         = "state"
	FieldSessionID     = "session_id"
	FieldSince         = "since"
	FieldPendingResets = "pending_resets"
	FieldQueuedEvents  = "queued_events"
	FieldBaseline      = "baseline"

	FieldRingerMode         = "ringer_mode"
	FieldRingVolume         = "ring_volume"
	FieldNotificationVolume = "notification_volume"
	FieldSystemVolume       = "system_volume"
	FieldInterruptionFilter = "interruption_filter"
)

var (
	// errNotInteger is returned for a number field holding a fraction.
	errNotInteger = errors.New("must be an integer")
	// errVolumeRange is returned for a volume outside 0..100.
	errVolumeRange = errors.New("volume must be between 0 and 100")
)

// Actor identifies who issued a request, for the server's audit log.
type Actor struct {
	Hostname string
	Username string
}

// StatusReport is the wire view of the engine status.
type StatusReport struct {
	State         string
	SessionID     string
	Since         time.Time
	PendingResets int
	QueuedEvents  int
	Contact       *ringer.Contact
	Baseline      *BaselineReport
}

// BaselineReport is the wire view of a captured baseline.
type BaselineReport struct {
	RingerMode         string
	RingVolume         int
	NotificationVolume int
	SystemVolume       int
	InterruptionFilter string
	Ringtone           *string
}

// ActorToStruct encodes an actor; nil yields nil.
func ActorToStruct(actor *Actor) *structpb.Struct {
	if actor == nil {
		return nil
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldHostname: structpb.NewStringValue(actor.Hostname),
		FieldUsername: structpb.NewStringValue(actor.Username),
	}}
}

// ActorFromRequest reads the actor attached to a request, nil when absent.
func ActorFromRequest(req *structpb.Struct) *Actor {
	s := structField(req, FieldActor)
	if s == nil {
		return nil
	}

	return &Actor{
		Hostname: stringField(s, FieldHostname),
		Username: stringField(s, FieldUsername),
	}
}

// String formats the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "unknown"
	}

	return a.Username + "@" + a.Hostname
}

// ContactToStruct encodes a contact.
func ContactToStruct(c *ringer.Contact) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldName:        structpb.NewStringValue(c.Name),
		FieldNumber:      structpb.NewStringValue(c.Number),
		FieldVolume:      structpb.NewNumberValue(float64(c.VolumePercent)),
		FieldOnlyVibrate: structpb.NewBoolValue(c.OnlyVibrate),
	}

	if c.Ringtone != nil {
		fields[FieldRingtone] = structpb.NewStringValue(*c.Ringtone)
	}

	return &structpb.Struct{Fields: fields}
}

// ContactFromStruct decodes a contact. A missing volume means the default.
func ContactFromStruct(s *structpb.Struct) (*ringer.Contact, error) {
	contact := ringer.NewContact(stringField(s, FieldName), stringField(s, FieldNumber))
	contact.OnlyVibrate = boolField(s, FieldOnlyVibrate)

	if ringtone := stringField(s, FieldRingtone); ringtone != "" {
		contact.Ringtone = &ringtone
	}

	volume, ok, err := intField(s, FieldVolume)
	if err != nil {
		return nil, err
	}

	if ok {
		if volume < 0 || volume > 100 {
			return nil, fmt.Errorf("%s: %w", FieldVolume, errVolumeRange)
		}

		contact.VolumePercent = volume
	}

	return contact, nil
}

// ContactsToStruct encodes a contact list.
func ContactsToStruct(list []*ringer.Contact) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(list))
	for _, c := range list {
		values = append(values, structpb.NewStructValue(ContactToStruct(c)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldContacts: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// ContactsFromStruct decodes a contact list.
func ContactsFromStruct(s *structpb.Struct) ([]*ringer.Contact, error) {
	values := s.GetFields()[FieldContacts].GetListValue().GetValues()
	list := make([]*ringer.Contact, 0, len(values))

	for i, v := range values {
		contact, err := ContactFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", i, err)
		}

		list = append(list, contact)
	}

	return list, nil
}

// StatusToStruct encodes an engine status and the event queue depth.
func StatusToStruct(st engine.Status, queued int) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldState:         structpb.NewStringValue(string(st.State)),
		FieldPendingResets: structpb.NewNumberValue(float64(st.PendingResets)),
		FieldQueuedEvents:  structpb.NewNumberValue(float64(queued)),
	}

	if st.SessionID != "" {
		fields[FieldSessionID] = structpb.NewStringValue(st.SessionID)
	}

	if !st.Since.IsZero() {
		fields[FieldSince] = structpb.NewStringValue(st.Since.UTC().Format(time.RFC3339Nano))
	}

	if st.Contact != nil {
		fields[FieldContact] = structpb.NewStructValue(ContactToStruct(st.Contact))
	}

	if b := st.Baseline; b != nil {
		baseline := map[string]*structpb.Value{
			FieldRingerMode:         structpb.NewStringValue(b.RingerMode.String()),
			FieldRingVolume:         structpb.NewNumberValue(float64(b.RingVolume)),
			FieldNotificationVolume: structpb.NewNumberValue(float64(b.NotificationVolume)),
			FieldSystemVolume:       structpb.NewNumberValue(float64(b.SystemVolume)),
			FieldInterruptionFilter: structpb.NewStringValue(b.InterruptionFilter.String()),
		}

		if b.Ringtone != nil {
			baseline[FieldRingtone] = structpb.NewStringValue(*b.Ringtone)
		}

		fields[FieldBaseline] = structpb.NewStructValue(&structpb.Struct{Fields: baseline})
	}

	return &structpb.Struct{Fields: fields}
}

// StatusFromStruct decodes a status response.
func StatusFromStruct(s *structpb.Struct) (*StatusReport, error) {
	report := &StatusReport{
		State:     stringField(s, FieldState),
		SessionID: stringField(s, FieldSessionID),
	}

	var err error

	if since := stringField(s, FieldSince); since != "" {
		if report.Since, err = time.Parse(time.RFC3339Nano, since); err != nil {
			return nil, fmt.Errorf("%s: %w", FieldSince, err)
		}
	}

	if report.PendingResets, _, err = intField(s, FieldPendingResets); err != nil {
		return nil, err
	}

	if report.QueuedEvents, _, err = intField(s, FieldQueuedEvents); err != nil {
		return nil, err
	}

	if c := structField(s, FieldContact); c != nil {
		if report.Contact, err = ContactFromStruct(c); err != nil {
			return nil, fmt.Errorf("%s: %w", FieldContact, err)
		}
	}

	if b := structField(s, FieldBaseline); b != nil {
		baseline := &BaselineReport{
			RingerMode:         stringField(b, FieldRingerMode),
			InterruptionFilter: stringField(b, FieldInterruptionFilter),
		}

		for field, target := range map[string]*int{
			FieldRingVolume:         &baseline.RingVolume,
			FieldNotificationVolume: &baseline.NotificationVolume,
			FieldSystemVolume:       &baseline.SystemVolume,
		} {
			if *target, _, err = intField(b, field); err != nil {
				return nil, err
			}
		}

		if ringtone := stringField(b, FieldRingtone); ringtone != "" {
			baseline.Ringtone = &ringtone
		}

		report.Baseline = baseline
	}

	return report, nil
}

// StringMapToStruct encodes string extras.
func StringMapToStruct(m map[string]string) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewStringValue(v)
	}

	return &structpb.Struct{Fields: fields}
}

// stringMapField reads a nested Struct of strings; other kinds are formatted.
func stringMapField(s *structpb.Struct, key string) map[string]string {
	nested := structField(s, key)
	if nested == nil {
		return nil
	}

	result := make(map[string]string, len(nested.GetFields()))

	for k, v := range nested.GetFields() {
		if str, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			result[k] = str.StringValue
			continue
		}

		result[k] = fmt.Sprint(v.AsInterface())
	}

	return result
}

// stringField reads a string field, empty when absent.
func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// boolField reads a bool field, false when absent.
func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// structField reads a nested Struct, nil when absent.
func structField(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}

// intField reads an integral number field, reporting whether it was present.
func intField(s *structpb.Struct, key string) (int, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false, nil
	}

	number, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, false, fmt.Errorf("%s: must be a number", key)
	}

	if math.IsInf(number.NumberValue, 0) || number.NumberValue != math.Trunc(number.NumberValue) {
		return 0, false, fmt.Errorf("%s: %w", key, errNotInteger)
	}

	return int(number.NumberValue), true, nil
}
