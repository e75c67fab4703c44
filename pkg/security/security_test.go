package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

func TestAddInstanceAllocatesIDs(t *testing.T) {
	obj := New()

	first, err := obj.AddInstance(Instance{SSID: 1, ServerURI: "coap://127.0.0.1:5683", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	require.NoError(t, err)
	second, err := obj.AddInstance(Instance{SSID: 2, ServerURI: "coap://127.0.0.1:5693", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, []dm.InstanceID{first, second}, obj.Instances())

	iid, inst, ok := obj.BySSID(2)
	require.True(t, ok)
	assert.Equal(t, second, iid)
	assert.Equal(t, "coap://127.0.0.1:5693", inst.ServerURI)
}

func TestAddInstanceValidation(t *testing.T) {
	tests := []struct {
		name    string
		inst    Instance
		wantErr error
	}{
		{
			name:    "ssid zero",
			inst:    Instance{SSID: 0, ServerURI: "coap://host:5683", SecurityMode: ModeNoSec},
			wantErr: ErrInvalidSSID,
		},
		{
			name:    "ssid bootstrap",
			inst:    Instance{SSID: dm.SSIDBootstrap, ServerURI: "coap://host:5683", SecurityMode: ModeNoSec},
			wantErr: ErrInvalidSSID,
		},
		{
			name:    "missing host",
			inst:    Instance{SSID: 1, ServerURI: "coap://", SecurityMode: ModeNoSec},
			wantErr: ErrInvalidURI,
		},
		{
			name:    "bad scheme",
			inst:    Instance{SSID: 1, ServerURI: "http://host:80", SecurityMode: ModeNoSec},
			wantErr: ErrInvalidURI,
		},
		{
			name:    "psk over coap",
			inst:    Instance{SSID: 1, ServerURI: "coap://host:5683", SecurityMode: ModePSK},
			wantErr: ErrModeMismatch,
		},
		{
			name:    "nosec over coaps",
			inst:    Instance{SSID: 1, ServerURI: "coaps://host:5684", SecurityMode: ModeNoSec},
			wantErr: ErrModeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := New()
			_, err := obj.AddInstance(tt.inst, dm.IIDInvalid)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, obj.Instances())
		})
	}
}

func TestAddInstanceDuplicateSSID(t *testing.T) {
	obj := New()
	_, err := obj.AddInstance(Instance{SSID: 1, ServerURI: "coap://a:5683", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	require.NoError(t, err)

	_, err = obj.AddInstance(Instance{SSID: 1, ServerURI: "coap://b:5683", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	assert.ErrorIs(t, err, ErrDuplicateSSID)

	_, err = obj.AddInstance(Instance{SSID: 3, ServerURI: "coaps://b:5684", SecurityMode: ModePSK}, 0)
	assert.ErrorIs(t, err, dm.ErrInstanceExists)
}

func TestResources(t *testing.T) {
	obj := New()
	iid, err := obj.AddInstance(Instance{SSID: 7, ServerURI: "coaps://srv:5684", SecurityMode: ModeCertificate}, 4)
	require.NoError(t, err)
	require.Equal(t, dm.InstanceID(4), iid)

	uri, err := obj.ReadResource(iid, ResServerURI)
	require.NoError(t, err)
	assert.Equal(t, "coaps://srv:5684", uri)

	ssid, err := obj.ReadResource(iid, ResShortServerID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ssid)

	require.NoError(t, obj.WriteResource(iid, ResSecurityMode, int64(ModePSK)))
	mode, _ := obj.ReadResource(iid, ResSecurityMode)
	assert.Equal(t, int64(ModePSK), mode)

	assert.ErrorIs(t, obj.WriteResource(iid, ResSecurityMode, "psk"), dm.ErrBadRequest)
	_, err = obj.ReadResource(iid, 99)
	assert.ErrorIs(t, err, dm.ErrResourceNotFound)
	_, err = obj.ReadResource(9, ResServerURI)
	assert.ErrorIs(t, err, dm.ErrInstanceNotFound)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModePSK, ModeRPK, ModeCertificate, ModeNoSec} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("tls")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestDeleteIsIdempotent(t *testing.T) {
	var nilObj *Object
	assert.NotPanics(t, nilObj.Delete)

	obj := New()
	_, _ = obj.AddInstance(Instance{SSID: 1, ServerURI: "coap://a:5683", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	obj.Delete()
	obj.Delete()

	assert.Empty(t, obj.Instances())
	_, err := obj.AddInstance(Instance{SSID: 2, ServerURI: "coap://a:5683", SecurityMode: ModeNoSec}, dm.IIDInvalid)
	assert.ErrorIs(t, err, ErrObjectDeleted)
}
