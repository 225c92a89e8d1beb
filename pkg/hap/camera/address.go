package camera

import (
	"errors"
	"net"

	"github.com/pion/transport/v3"
)

var errNoAddress = errors.New("camera: no local address")

// localAddress returns the first global unicast address of an up interface,
// preferring the family of the controller.
func localAddress(n transport.Net, ipv6 bool) (string, error) {
	ifaces, err := n.Interfaces()
	if err != nil {
		return "", err
	}

	var fallback string

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}

			if (ip.To4() == nil) == ipv6 {
				return ip.String(), nil
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", errNoAddress
}

func addressVersionOf(address string) byte {
	if ip := net.ParseIP(address); ip != nil && ip.To4() == nil {
		return AddressVersionIPv6
	}
	return AddressVersionIPv4
}
