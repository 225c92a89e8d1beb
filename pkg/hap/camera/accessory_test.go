package camera

import (
	"testing"

	"github.com/hapcam/hapcam/pkg/hap"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAccessory(t *testing.T) {
	cam, err := NewCamera(DefaultOptions(), &fakeSource{}, 2, zerolog.Nop())
	require.Nil(t, err)

	info := hap.ServiceAccessoryInformation("hapcam", "test", "Camera", "1", "0.1")
	acc, err := cam.Accessory(info)
	require.Nil(t, err)
	require.Len(t, acc.Services, 4)

	service := acc.Services[2]
	require.True(t, service.Primary)
	require.Equal(t, uint64(0x11110000), service.IID)

	char := service.GetCharacter(TypeStreamingStatus)
	require.Equal(t, "AQEA", char.Value)
	require.Equal(t, hap.EVPR, char.Perms)
	require.Equal(t, char, acc.GetCharacterByID(0x11110120))

	char = service.GetCharacter(TypeSupportedRTPConfiguration)
	require.Equal(t, "AgEA", char.Value)

	// nothing selected yet
	require.Equal(t, "", acc.Services[3].GetCharacter(TypeSetupEndpoints).Value)
	require.False(t, acc.Services[3].Primary)
}
