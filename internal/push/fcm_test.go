package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_CarriesPayloadAndPriority(t *testing.T) {
	msg := message([]string{"t1", "t2"}, "Request approved", "FLGP-20240101-0001", map[string]string{"kind": "request_approved"})

	assert.Equal(t, []string{"t1", "t2"}, msg.Tokens)
	assert.Equal(t, "Request approved", msg.Notification.Title)
	assert.Equal(t, "request_approved", msg.Data["kind"])
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, "alert", msg.APNS.Headers["apns-push-type"])
}
