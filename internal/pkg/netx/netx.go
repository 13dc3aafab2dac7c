/*
Package netx resolves the address other devices on the LAN use to reach this host.
*/
package netx

import (
	"fmt"
	"net"
)

// probeAddr is never contacted: connecting a UDP socket only selects a route,
// which reveals the outbound interface address without sending packets.
const probeAddr = "8.8.8.8:80"

// LocalIP returns the IPv4 address of the interface used for outbound traffic.
// It falls back to scanning interfaces, then to 127.0.0.1.
func LocalIP() string {
	if conn, err := net.Dial("udp", probeAddr); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsUnspecified() {
			return addr.IP.String()
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if v4 := ipNet.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}

	return "127.0.0.1"
}

// ShareURL formats the URL printed for users to open on their devices.
func ShareURL(ip string, port int) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(ip, fmt.Sprint(port)))
}
