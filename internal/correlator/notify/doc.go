// Package notify correlates posted notifications and SMS with the override engine.
//
// SMS from a designated contact apply a short override, play a substitution
// tone and schedule a reset. Call notifications of the vendor in-call UI apply
// an override after a short delay and reset it when the notification is
// removed. Notification keys are deduplicated until their removal.
package notify
