package model

import (
	"encoding/json"
)

// NotificationType is the discriminant of a server push notification.
type NotificationType string

const (
	NotificationTypeDeviceHandshakeSuccess    NotificationType = "deviceHandshakeSuccess"
	NotificationTypePong                      NotificationType = "pong"
	NotificationTypeFileAdded                 NotificationType = "fileAdded"
	NotificationTypeFileModified              NotificationType = "fileModified"
	NotificationTypeFileDeleted               NotificationType = "fileDeleted"
	NotificationTypeStatisticsChanged         NotificationType = "statisticsChanged"
	NotificationTypeConnectionRequestReceived NotificationType = "connectionRequestReceived"
	NotificationTypeConnectionRequestAccepted NotificationType = "connectionRequestAccepted"
	NotificationTypeConnectionFinalized       NotificationType = "connectionFinalized"
	NotificationTypeInboxItemReceived         NotificationType = "inboxItemReceived"
	NotificationTypeAppNotificationAdded      NotificationType = "appNotificationAdded"
	NotificationTypeReactionContentAdded      NotificationType = "reactionContentAdded"
	NotificationTypeReactionContentDeleted    NotificationType = "reactionContentDeleted"
	NotificationTypeError                     NotificationType = "error"
	NotificationTypeUnknown                   NotificationType = "unknown"
)

var knownNotificationTypes = map[NotificationType]struct{}{
	NotificationTypeDeviceHandshakeSuccess:    {},
	NotificationTypePong:                      {},
	NotificationTypeFileAdded:                 {},
	NotificationTypeFileModified:              {},
	NotificationTypeFileDeleted:               {},
	NotificationTypeStatisticsChanged:         {},
	NotificationTypeConnectionRequestReceived: {},
	NotificationTypeConnectionRequestAccepted: {},
	NotificationTypeConnectionFinalized:       {},
	NotificationTypeInboxItemReceived:         {},
	NotificationTypeAppNotificationAdded:      {},
	NotificationTypeReactionContentAdded:      {},
	NotificationTypeReactionContentDeleted:    {},
	NotificationTypeError:                     {},
	NotificationTypeUnknown:                   {},
}

// Known reports whether t is a discriminant this client understands.
func (t NotificationType) Known() bool {
	_, ok := knownNotificationTypes[t]
	return ok
}

// IsFileEvent reports whether t is one of the file lifecycle notifications.
func (t NotificationType) IsFileEvent() bool {
	switch t {
	case NotificationTypeFileAdded, NotificationTypeFileModified, NotificationTypeFileDeleted:
		return true
	}
	return false
}

// IsControl reports whether t only concerns the transport itself.
func (t NotificationType) IsControl() bool {
	return t == NotificationTypeDeviceHandshakeSuccess || t == NotificationTypePong
}

// Notification is a decoded server push. Which optional fields are set
// depends on NotificationType.
type Notification struct {
	NotificationType NotificationType `json:"notificationType"`

	// OriginalType holds the wire discriminant when it was not recognised
	// and NotificationType was rewritten to unknown.
	OriginalType string `json:"-"`

	TargetDrive              *TargetDrive    `json:"targetDrive,omitempty"`
	Header                   json.RawMessage `json:"header,omitempty"`
	PreviousServerFileHeader json.RawMessage `json:"previousServerFileHeader,omitempty"`
	Sender                   string          `json:"sender,omitempty"`
	Recipient                string          `json:"recipient,omitempty"`
	AppNotification          json.RawMessage `json:"appNotification,omitempty"`
	Reaction                 json.RawMessage `json:"reaction,omitempty"`
	ErrorCode                string          `json:"errorCode,omitempty"`
	Message                  string          `json:"message,omitempty"`
	Data                     json.RawMessage `json:"data,omitempty"`

	// Raw is the decrypted notification JSON as received.
	Raw json.RawMessage `json:"-"`
}
