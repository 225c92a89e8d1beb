package camera

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCamera(t *testing.T) {
	_, err := NewCamera(DefaultOptions(), &fakeSource{}, 0, zerolog.Nop())
	require.NotNil(t, err)

	source := &fakeSource{}
	cam, err := NewCamera(DefaultOptions(), source, 2, zerolog.Nop())
	require.Nil(t, err)
	require.Len(t, cam.Streams(), 2)

	_, err = cam.Stream(2)
	require.ErrorIs(t, err, ErrNoStream)

	b, err := cam.Read(1, TypeSupportedRTPConfiguration)
	require.Nil(t, err)
	require.Equal(t, []byte{2, 1, 0}, b)

	b, err = cam.Read(1, TypeSetupEndpoints)
	require.Nil(t, err)
	require.Nil(t, b)

	_, err = cam.Read(0, "999")
	require.ErrorIs(t, err, ErrUnknownCharacteristic)

	_, err = cam.Read(-1, TypeStreamingStatus)
	require.ErrorIs(t, err, ErrNoStream)

	ctx := context.Background()
	require.ErrorIs(t, cam.Write(ctx, 0, TypeStreamingStatus, []byte{1, 1, 0}, "conn1"), ErrReadOnly)
	require.ErrorIs(t, cam.Write(ctx, 0, "999", nil, "conn1"), ErrUnknownCharacteristic)

	require.Nil(t, cam.Write(ctx, 1, TypeSelectedStreamConfiguration, selectedValue(SessionCommandStart, 99, 110), "conn1"))

	b, err = cam.Read(1, TypeStreamingStatus)
	require.Nil(t, err)
	require.Equal(t, []byte{1, 1, 1}, b)

	b, err = cam.Read(0, TypeStreamingStatus)
	require.Nil(t, err)
	require.Equal(t, []byte{1, 1, 0}, b)

	infos, err := cam.Describe()
	require.Nil(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "conn1", infos[1].ConnectionID)
	require.Equal(t, "6d392adc-541b-4f43-9b3c-24496b3e135a", infos[1].Session)
	require.Len(t, infos[0].Video.Codecs, 1)
	require.Len(t, infos[0].Audio.Codecs, 2)
	require.Equal(t, []byte{CryptoAES_CM_128_HMAC_SHA1_80}, infos[0].RTP.CryptoType)

	cam.HandleCloseConnection("conn1")

	require.Equal(t, byte(StreamingStatusAvailable), cam.Streams()[1].Status())
	require.Equal(t, []string{"conn1"}, source.closed)
	require.Equal(t, []string{StreamRequestStart}, source.types())
}

func TestAddressVersion(t *testing.T) {
	require.Equal(t, byte(AddressVersionIPv4), addressVersionOf("192.168.1.2"))
	require.Equal(t, byte(AddressVersionIPv6), addressVersionOf("fe80::1"))
	require.Equal(t, byte(AddressVersionIPv4), addressVersionOf("camera.local"))
}
