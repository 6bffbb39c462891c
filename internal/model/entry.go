package model

import (
	"encoding/json"
	"time"
)

// Entry is a journaled notification.
type Entry struct {
	ID               string           `json:"id"`
	Transport        string           `json:"transport"`
	NotificationType NotificationType `json:"notificationType"`
	Drive            string           `json:"drive,omitempty"`
	Sender           string           `json:"sender,omitempty"`
	Payload          json.RawMessage  `json:"payload"`
	ReceivedAt       time.Time        `json:"receivedAt"`
}

// DriveFromNotification sets Drive from the notification target drive.
func (e *Entry) DriveFromNotification(n *Notification) {
	if n.TargetDrive == nil {
		e.Drive = ""
		return
	}
	e.Drive = n.TargetDrive.String()
}

// PayloadString returns the payload as a string for storage.
func (e *Entry) PayloadString() string {
	if len(e.Payload) == 0 {
		return "{}"
	}
	return string(e.Payload)
}

// EntryFilter narrows a journal listing.
type EntryFilter struct {
	Transport        string
	NotificationType NotificationType
	Limit            int
}
