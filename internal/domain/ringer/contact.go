package ringer

import "strings"

// DefaultVolumePercent is the volume applied when a contact record does not set one.
const DefaultVolumePercent = 100

// Contact is a designated contact and its override policy.
type Contact struct {
	// Name is the display name and the unique key of the contact.
	Name string
	// Number is the phone number as entered by the user.
	Number string
	// Ringtone is an optional reference to a custom ringtone.
	Ringtone *string
	// VolumePercent is the ring volume as a percentage of the stream maximum.
	VolumePercent int
	// OnlyVibrate switches the policy to vibrate without an audible ring.
	OnlyVibrate bool
}

// NewContact returns a contact with the default policy.
func NewContact(name, number string) *Contact {
	return &Contact{
		Name:          name,
		Number:        number,
		VolumePercent: DefaultVolumePercent,
	}
}

// Clone returns a deep copy of the contact.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}

	cloned := *c
	if c.Ringtone != nil {
		ringtone := *c.Ringtone
		cloned.Ringtone = &ringtone
	}

	return &cloned
}

// HasRingtone reports whether the contact carries a non-empty custom ringtone.
func (c *Contact) HasRingtone() bool {
	return c != nil && c.Ringtone != nil && strings.TrimSpace(*c.Ringtone) != ""
}

// Volume returns VolumePercent clamped to 0..100.
func (c *Contact) Volume() int {
	switch {
	case c.VolumePercent < 0:
		return 0
	case c.VolumePercent > 100:
		return 100
	default:
		return c.VolumePercent
	}
}

// SameName compares display names ignoring case and surrounding spaces.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
