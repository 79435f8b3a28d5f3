package devsms

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSMS_LogsMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewSender(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, s.SendSMS(context.Background(), "+10000000001", "Your OTP is: 123456"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "+10000000001", entry["to"])
	assert.Equal(t, "Your OTP is: 123456", entry["message"])
}
