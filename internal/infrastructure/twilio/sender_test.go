package twilio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestSendSMS_SetsParams(t *testing.T) {
	api := &fakeAPI{}
	s := &Sender{api: api, from: "+15550000000"}
	require.NoError(t, s.SendSMS(context.Background(), "+10000000001", "code"))

	require.NotNil(t, api.params)
	assert.Equal(t, "+10000000001", *api.params.To)
	assert.Equal(t, "+15550000000", *api.params.From)
	assert.Equal(t, "code", *api.params.Body)
}

func TestSendSMS_Errors(t *testing.T) {
	s := &Sender{api: &fakeAPI{err: errors.New("20003 auth")}, from: "+15550000000"}
	assert.ErrorContains(t, s.SendSMS(context.Background(), "+10000000001", "code"), "20003")

	api := &fakeAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = &Sender{api: api, from: "+15550000000"}
	assert.ErrorIs(t, s.SendSMS(ctx, "+10000000001", "code"), context.Canceled)
	assert.Nil(t, api.params)
}
