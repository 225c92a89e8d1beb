package camera

import (
	"github.com/hapcam/hapcam/pkg/hap"
)

// Accessory returns a HAP accessory snapshot with one RTP stream management
// service per stream.
func (c *Camera) Accessory(info *hap.Service) (*hap.Accessory, error) {
	acc := &hap.Accessory{AID: hap.DeviceAID}
	if info != nil {
		acc.Services = append(acc.Services, info)
	}
	acc.Services = append(acc.Services, hap.ServiceHAPProtocolInformation())

	for i, s := range c.streams {
		service := &hap.Service{
			Type:    hap.TypeCameraRTPStreamManagement,
			Primary: i == 0,
		}

		chars := []struct {
			typ   string
			perms []string
			value []byte
		}{
			{TypeStreamingStatus, hap.EVPR, s.StreamingStatus()},
			{TypeSupportedRTPConfiguration, hap.PR, s.SupportedRTPConfiguration()},
			{TypeSupportedVideoStreamConfiguration, hap.PR, s.SupportedVideoStreamConfiguration()},
			{TypeSupportedAudioStreamConfiguration, hap.PR, s.SupportedAudioStreamConfiguration()},
			{TypeSelectedStreamConfiguration, hap.PRPW, s.SelectedStreamConfiguration()},
			{TypeSetupEndpoints, hap.PRPW, s.SetupEndpoints()},
		}

		for _, ch := range chars {
			char := &hap.Character{Type: ch.typ, Format: hap.FormatTLV8, Perms: ch.perms}
			if err := char.Write(ch.value); err != nil {
				return nil, err
			}
			service.Characters = append(service.Characters, char)
		}

		acc.Services = append(acc.Services, service)
	}

	if err := acc.InitIID(); err != nil {
		return nil, err
	}

	return acc, nil
}
