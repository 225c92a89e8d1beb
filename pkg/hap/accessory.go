package hap

import (
	"fmt"
	"strconv"
)

const (
	FormatString = "string"
	FormatBool   = "bool"
	FormatUInt8  = "uint8"
	FormatTLV8   = "tlv8"
)

var PR = []string{"pr"}
var PW = []string{"pw"}
var PRPW = []string{"pr", "pw"}
var EVPR = []string{"ev", "pr"}

const DeviceAID = 1

const (
	TypeAccessoryInformation      = "3E"
	TypeCameraRTPStreamManagement = "110"
	TypeHAPProtocolInformation    = "A2"
)

type Accessories struct {
	Accessories []*Accessory `json:"accessories"`
}

type Accessory struct {
	AID      uint8      `json:"aid"` // 150 unique accessories per bridge
	Services []*Service `json:"services"`
}

// InitIID gives every service and characteristic a stable instance id:
// service ANSSS000, characteristic ANSSSCCC, where N counts services of one type.
func (a *Accessory) InitIID() error {
	serviceN := map[string]byte{}
	for _, service := range a.Services {
		if len(service.Type) > 3 {
			return fmt.Errorf("hap: long service type: %s", service.Type)
		}

		n := serviceN[service.Type] + 1
		serviceN[service.Type] = n

		if n > 15 {
			return fmt.Errorf("hap: too many services: %s", service.Type)
		}

		t, err := strconv.ParseUint(service.Type, 16, 64)
		if err != nil {
			return err
		}
		service.IID = uint64(a.AID)<<28 | uint64(n)<<24 | t<<12

		for _, character := range service.Characters {
			if len(character.Type) > 3 {
				return fmt.Errorf("hap: long characteristic type: %s", character.Type)
			}

			if character.IID, err = strconv.ParseUint(character.Type, 16, 64); err != nil {
				return err
			}
			character.IID += service.IID
		}
	}
	return nil
}

func (a *Accessory) GetService(servType string) *Service {
	for _, serv := range a.Services {
		if serv.Type == servType {
			return serv
		}
	}
	return nil
}

func (a *Accessory) GetCharacterByID(iid uint64) *Character {
	for _, serv := range a.Services {
		for _, char := range serv.Characters {
			if char.IID == iid {
				return char
			}
		}
	}
	return nil
}

type Service struct {
	Type       string       `json:"type"`
	IID        uint64       `json:"iid"`
	Primary    bool         `json:"primary,omitempty"`
	Characters []*Character `json:"characteristics"`
}

func (s *Service) GetCharacter(charType string) *Character {
	for _, char := range s.Characters {
		if char.Type == charType {
			return char
		}
	}
	return nil
}

func ServiceAccessoryInformation(manuf, model, name, serial, firmware string) *Service {
	return &Service{
		Type: TypeAccessoryInformation,
		Characters: []*Character{
			{Type: "14", Format: FormatBool, Perms: PW},                  // Identify
			{Type: "20", Format: FormatString, Value: manuf, Perms: PR},  // Manufacturer
			{Type: "21", Format: FormatString, Value: model, Perms: PR},  // Model
			{Type: "23", Format: FormatString, Value: name, Perms: PR},   // Name
			{Type: "30", Format: FormatString, Value: serial, Perms: PR}, // Serial Number
			{Type: "52", Format: FormatString, Value: firmware, Perms: PR},
		},
	}
}

func ServiceHAPProtocolInformation() *Service {
	return &Service{
		Type: TypeHAPProtocolInformation,
		Characters: []*Character{
			{Type: "37", Format: FormatString, Value: "1.1.0", Perms: PR}, // Version
		},
	}
}
