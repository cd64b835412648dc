package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// OTPDeliveryMessage asks the worker to deliver a login code to an address.
type OTPDeliveryMessage struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOTPDeliveryMessage(email, code string, expiresAt time.Time) *OTPDeliveryMessage {
	return &OTPDeliveryMessage{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		Timestamp: time.Now(),
	}
}

func (m *OTPDeliveryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OTPDeliveryMessageFromJSON decodes a message and rejects ones without an
// address or code.
func OTPDeliveryMessageFromJSON(data []byte) (*OTPDeliveryMessage, error) {
	var msg OTPDeliveryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Email == "" || msg.Code == "" {
		return nil, errors.New("message needs email and code")
	}
	return &msg, nil
}
