package controlplane

import (
	"net"
	"strings"
)

type InterfaceAddress struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
	IsPrimary bool   `json:"is_primary"`
}

// DetectLocalIP returns the address of the interface that carries the default route.
// No packet is sent; dialing UDP only selects the source address.
func DetectLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// ListInterfaceAddresses returns the non-loopback IPv4 addresses of the host
func ListInterfaceAddresses(primaryIP string) []InterfaceAddress {
	interfaces, err := net.Interfaces()
	if err != nil {
		return []InterfaceAddress{{Interface: "auto-detected", IP: primaryIP, IsPrimary: true}}
	}

	addresses := []InterfaceAddress{}
	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			ip := ipNet.IP.String()
			if strings.HasPrefix(ip, "127.") {
				continue
			}
			addresses = append(addresses, InterfaceAddress{
				Interface: iface.Name,
				IP:        ip,
				IsPrimary: ip == primaryIP,
			})
		}
	}
	return addresses
}
