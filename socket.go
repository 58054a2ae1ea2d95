package ssocket

import (
	"fmt"
	"net/netip"
)

// SocketAddress is the address of a datagram socket endpoint.
type SocketAddress interface {
	Network() string
	String() string
	sockaddr()
}

// Inet4Address is an IPv4 socket address.
type Inet4Address struct {
	Port int
	Addr [4]byte
}

func (a *Inet4Address) sockaddr() {}

func (a *Inet4Address) Network() string {
	return "udp4"
}

func (a *Inet4Address) String() string {
	return fmt.Sprintf(`%d.%d.%d.%d:%d`, a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
}

func (a *Inet4Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// AddrPort converts the address to a netip.AddrPort.
func (a *Inet4Address) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
}

// ParseInet4Address builds the address of a datagram peer from the textual
// form of an IPv4 address and a port number.
func ParseInet4Address(address string, port int) (*Inet4Address, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", EINVAL, port)
	}
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", EINVAL, err)
	}
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	if !ip.Is4() {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", EINVAL, address)
	}
	return &Inet4Address{Port: port, Addr: ip.As4()}, nil
}

// AnyInet4Address returns the wildcard IPv4 address with the given port.
func AnyInet4Address(port int) (*Inet4Address, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", EINVAL, port)
	}
	return &Inet4Address{Port: port}, nil
}

var _ SocketAddress = (*Inet4Address)(nil)
