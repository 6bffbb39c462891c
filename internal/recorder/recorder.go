// Package recorder captures a transport's notification stream as a
// replayable JSON-Lines recording.
//
// The first line is a Header. Every following line is an Event encoded
// as [time_offset, event_type, data], modelled on asciicast v2.
package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/homebase-id/odin-notify/internal/clock"
	"github.com/homebase-id/odin-notify/internal/model"
)

// Event types.
const (
	EventNotification = "n"
	EventDisconnect   = "d"
	EventReconnect    = "r"
)

// Header is the first line of a recording.
type Header struct {
	Version   int    `json:"version"`
	Transport string `json:"transport"`
	Timestamp int64  `json:"timestamp"`
}

// Event is a single recorded event.
type Event struct {
	TimeOffset float64
	EventType  string
	Data       string
}

// MarshalJSON encodes e as a three element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON decodes the three element array form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("event has %d fields, want 3", len(fields))
	}

	var decoded Event
	targets := [3]interface{}{&decoded.TimeOffset, &decoded.EventType, &decoded.Data}
	for i, f := range fields {
		if err := json.Unmarshal(f, targets[i]); err != nil {
			return fmt.Errorf("event field %d: %w", i, err)
		}
	}
	*e = decoded
	return nil
}

// Recorder is a notify subscriber that writes a recording. Write errors
// are logged and do not stop the transport.
type Recorder struct {
	transport string
	clock     clock.Clock
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// Create starts a recording of transport in a new file at filePath.
func Create(filePath, transport string, c clock.Clock) (*Recorder, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r, err := newRecorder(file, transport, c)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewWithWriter starts a recording of transport on w.
func NewWithWriter(w io.Writer, transport string, c clock.Clock) (*Recorder, error) {
	return newRecorder(w, transport, c)
}

func newRecorder(w io.Writer, transport string, c clock.Clock) (*Recorder, error) {
	if c == nil {
		c = clock.Real()
	}
	r := &Recorder{
		transport: transport,
		clock:     c,
		writer:    w,
		startTime: c.Now(),
	}

	data, err := json.Marshal(Header{Version: 1, Transport: transport, Timestamp: r.startTime.Unix()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return r, nil
}

// HandleNotification records the raw notification. Pongs are skipped.
func (r *Recorder) HandleNotification(n *model.Notification) {
	if n.NotificationType == model.NotificationTypePong {
		return
	}
	r.record(EventNotification, string(n.Raw))
}

func (r *Recorder) OnDisconnect() {
	r.record(EventDisconnect, "")
}

func (r *Recorder) OnReconnect() {
	r.record(EventReconnect, "")
}

func (r *Recorder) record(eventType, data string) {
	if err := r.writeEvent(eventType, data); err != nil {
		log.Printf("Recorder-%s: %v", r.transport, err)
	}
}

func (r *Recorder) writeEvent(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event := Event{
		TimeOffset: r.clock.Now().Sub(r.startTime).Seconds(),
		EventType:  eventType,
		Data:       data,
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := r.writer.Write(append(eventData, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the recording file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// StartTime returns the start time of the recording.
func (r *Recorder) StartTime() time.Time {
	return r.startTime
}
