package hostmetrics

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
)

const (
	FamilyInet  = "AF_INET"
	FamilyInet6 = "AF_INET6"
)

// linkFamily is the address family name for hardware addresses on this platform
func linkFamily() string {
	if runtime.GOOS == "linux" {
		return "AF_PACKET"
	}
	return "AF_LINK"
}

// ipAddress builds an Address from an IP and its mask.
// Broadcast is only derived for IPv4 on broadcast-capable interfaces.
func ipAddress(ip net.IP, mask net.IPMask, broadcast bool) Address {
	addr := Address{Address: ip.String()}

	if ip4 := ip.To4(); ip4 != nil {
		addr.Family = FamilyInet
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}
		if len(mask) == net.IPv4len {
			addr.Netmask = net.IP(mask).String()
			if broadcast {
				bcast := make(net.IP, net.IPv4len)
				for i := range ip4 {
					bcast[i] = ip4[i] | ^mask[i]
				}
				addr.Broadcast = bcast.String()
			}
		}
		return addr
	}

	addr.Family = FamilyInet6
	if len(mask) == net.IPv6len {
		addr.Netmask = net.IP(mask).String()
	}
	return addr
}

// parseCIDRAddress parses "ip/prefix" as reported by gopsutil
func parseCIDRAddress(cidr string, broadcast bool) (Address, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		// Some platforms report bare addresses without a prefix
		if ip = net.ParseIP(cidr); ip == nil {
			return Address{}, fmt.Errorf("invalid interface address %q", cidr)
		}
		return ipAddress(ip, nil, false), nil
	}
	return ipAddress(ip, ipnet.Mask, broadcast), nil
}

// parsePrefixAddress parses an address with a separate prefix length, as node_exporter reports it
func parsePrefixAddress(address, prefix string, broadcast bool) (Address, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return Address{}, fmt.Errorf("invalid interface address %q", address)
	}
	if prefix == "" {
		return ipAddress(ip, nil, false), nil
	}

	ones, err := strconv.Atoi(prefix)
	if err != nil {
		return Address{}, fmt.Errorf("invalid prefix length %q for %s: %w", prefix, address, err)
	}
	bits := 8 * net.IPv6len
	if ip.To4() != nil {
		bits = 8 * net.IPv4len
	}
	mask := net.CIDRMask(ones, bits)
	if mask == nil {
		return Address{}, fmt.Errorf("prefix length %d out of range for %s", ones, address)
	}
	return ipAddress(ip, mask, broadcast), nil
}

// linkAddress builds the hardware address entry for an interface
func linkAddress(mac string, broadcast bool) Address {
	addr := Address{
		Family:  linkFamily(),
		Address: mac,
	}
	if broadcast {
		addr.Broadcast = "ff:ff:ff:ff:ff:ff"
	}
	return addr
}
