// Package netif reads address information of network interfaces from the
// operating system.
package netif

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

var ErrNotFound = errors.New("netif: interface not found")

const defaultRouteFile = "/proc/net/route"

// Info is the IPv4 configuration of one interface. Unset addresses are
// 0.0.0.0.
type Info struct {
	Name    string
	IP      net.IP
	Netmask net.IP
	Gateway net.IP
}

type Resolver interface {
	Exists(name string) bool
	Lookup(name string) (Info, error)
}

// System resolves interfaces of the running host.
type System struct {
	RouteFile string
}

func (s System) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := net.InterfaceByName(name)
	return err == nil
}

func (s System) Lookup(name string) (Info, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	info := Info{
		Name:    name,
		IP:      net.IPv4zero.To4(),
		Netmask: net.IPv4zero.To4(),
		Gateway: net.IPv4zero.To4(),
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return Info{}, fmt.Errorf("failed to read addresses of %s: %w", name, err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			info.IP = ip4
			info.Netmask = net.IP(ipNet.Mask).To4()
			break
		}
	}

	routeFile := s.RouteFile
	if routeFile == "" {
		routeFile = defaultRouteFile
	}
	if gw, err := DefaultGateway(routeFile, name); err == nil {
		info.Gateway = gw
	}

	return info, nil
}

// DefaultGateway parses a /proc/net/route style table and returns the
// gateway of the default route on iface.
func DefaultGateway(routeFile, iface string) (net.IP, error) {
	f, err := os.Open(routeFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] != iface || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			return nil, fmt.Errorf("invalid gateway field %q", fields[2])
		}
		// the kernel prints the address in host (little endian) order
		gw := make(net.IP, 4)
		binary.BigEndian.PutUint32(gw, binary.LittleEndian.Uint32(raw))
		return gw, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no default route on %s", iface)
}
