// Package codec parses and serializes notification socket frames.
//
// Inbound frames are JSON envelopes {"iv", "data"} whose data decrypts to
// the notification JSON. Outbound commands are encrypted into the same
// envelope, optionally carrying a peer authentication token.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/homebase-id/odin-notify/internal/cipher"
	"github.com/homebase-id/odin-notify/internal/model"
)

// Envelope is the JSON wrapper of every encrypted frame.
type Envelope struct {
	IV                    string `json:"iv"`
	Data                  string `json:"data"`
	AuthenticationToken64 string `json:"authenticationToken64,omitempty"`
}

// Codec encodes commands and decodes notifications with a shared secret.
type Codec struct {
	cipher cipher.Cipher
	newIV  func() ([]byte, error)
}

// New creates a Codec using c for payload encryption.
func New(c cipher.Cipher) *Codec {
	if c == nil {
		c = cipher.NewAESCBC()
	}
	return &Codec{
		cipher: c,
		newIV:  cipher.RandomIV,
	}
}

// probe is the subset of fields needed to tell encrypted envelopes from
// plain notifications.
type probe struct {
	IV               string  `json:"iv"`
	Data             *string `json:"data"`
	NotificationType *string `json:"notificationType"`
}

// Decode parses a raw inbound frame. Unrecognised discriminants decode to
// NotificationTypeUnknown with the wire value kept in OriginalType.
func (c *Codec) Decode(raw []byte, sharedSecret []byte) (*model.Notification, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidFrame, err)
	}

	var plain []byte
	switch {
	case p.NotificationType != nil:
		plain = raw
	case p.IV != "" && p.Data != nil:
		decrypted, err := c.open(p.IV, *p.Data, sharedSecret)
		if err != nil {
			return nil, err
		}
		plain = decrypted
	default:
		return nil, fmt.Errorf("%w: frame has neither payload nor notificationType", model.ErrInvalidFrame)
	}

	n := &model.Notification{}
	if err := json.Unmarshal(plain, n); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidFrame, err)
	}

	n.Raw = append(json.RawMessage(nil), plain...)
	if !n.NotificationType.Known() {
		n.OriginalType = string(n.NotificationType)
		n.NotificationType = model.NotificationTypeUnknown
	}

	return n, nil
}

// Encode serializes and encrypts cmd into a wire frame.
func (c *Codec) Encode(cmd *model.Command, sharedSecret []byte) ([]byte, error) {
	return c.EncodeWrapped(cmd, sharedSecret, "")
}

// EncodeWrapped is Encode with token attached to the envelope. An empty
// token produces a plain envelope.
func (c *Codec) EncodeWrapped(cmd *model.Command, sharedSecret []byte, token string) ([]byte, error) {
	plain, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	iv, err := c.newIV()
	if err != nil {
		return nil, err
	}

	ct, err := c.cipher.Encrypt(plain, iv, sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt command: %w", err)
	}

	return json.Marshal(&Envelope{
		IV:                    base64.StdEncoding.EncodeToString(iv),
		Data:                  base64.StdEncoding.EncodeToString(ct),
		AuthenticationToken64: token,
	})
}

// Seal encrypts an arbitrary notification JSON into an inbound envelope.
// The notification host uses it; clients only decode.
func (c *Codec) Seal(notification []byte, sharedSecret []byte) ([]byte, error) {
	iv, err := c.newIV()
	if err != nil {
		return nil, err
	}

	ct, err := c.cipher.Encrypt(notification, iv, sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt notification: %w", err)
	}

	return json.Marshal(&Envelope{
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ct),
	})
}

// DecodeCommand decrypts an outbound frame back into its command and
// returns the attached token, if any.
func (c *Codec) DecodeCommand(raw []byte, sharedSecret []byte) (*model.Command, string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrInvalidFrame, err)
	}

	plain, err := c.open(env.IV, env.Data, sharedSecret)
	if err != nil {
		return nil, "", err
	}

	cmd := &model.Command{}
	if err := json.Unmarshal(plain, cmd); err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrInvalidFrame, err)
	}
	return cmd, env.AuthenticationToken64, nil
}

func (c *Codec) open(iv64, data64 string, sharedSecret []byte) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(iv64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv: %v", model.ErrInvalidFrame, err)
	}
	ct, err := base64.StdEncoding.DecodeString(data64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad data: %v", model.ErrInvalidFrame, err)
	}
	plain, err := c.cipher.Decrypt(ct, iv, sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt failed: %v", model.ErrInvalidFrame, err)
	}
	return plain, nil
}
