package autopilot

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	SchemeTCP    = "tcp"
	SchemeUDP    = "udp"
	SchemeSerial = "serial"
	SchemeSim    = "sim"

	DefaultTCPHost    = "127.0.0.1"
	DefaultTCPPort    = 5760
	DefaultUDPPort    = 14540
	DefaultSerialBaud = 57600
)

// ConnectionURL is a parsed vehicle connection URL:
//
//	tcp://[server_host][:server_port]
//	udp://[bind_host][:bind_port]
//	serial:///path/to/serial/dev[:baudrate]
//	sim://
type ConnectionURL struct {
	Scheme string
	Host   string // tcp and udp
	Port   int    // tcp and udp
	Device string // serial
	Baud   int    // serial
}

// ParseConnectionURL parses and validates a connection URL, filling in
// default ports and baud rate.
func ParseConnectionURL(raw string) (*ConnectionURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	c := ConnectionURL{Scheme: strings.ToLower(u.Scheme)}

	switch c.Scheme {
	case SchemeTCP, SchemeUDP:
		if u.Path != "" && u.Path != "/" {
			return nil, fmt.Errorf("%w: unexpected path '%s'", ErrInvalidURL, u.Path)
		}

		c.Host = u.Hostname()
		if c.Host == "" && c.Scheme == SchemeTCP {
			c.Host = DefaultTCPHost
		}

		c.Port = DefaultUDPPort
		if c.Scheme == SchemeTCP {
			c.Port = DefaultTCPPort
		}
		if p := u.Port(); p != "" {
			if c.Port, err = parsePort(p); err != nil {
				return nil, err
			}
		}

	case SchemeSerial:
		device := u.Path
		if device == "" {
			// serial://COM3 on Windows ends up in Host
			device = u.Host
		}
		if device == "" {
			return nil, fmt.Errorf("%w: missing serial device", ErrInvalidURL)
		}

		c.Device = device
		c.Baud = DefaultSerialBaud
		if i := strings.LastIndex(device, ":"); i >= 0 {
			baud, err := strconv.Atoi(device[i+1:])
			if err != nil || baud <= 0 {
				return nil, fmt.Errorf("%w: invalid baud rate '%s'", ErrInvalidURL, device[i+1:])
			}
			c.Device = device[:i]
			c.Baud = baud
		}

	case SchemeSim:

	case "":
		return nil, fmt.Errorf("%w: missing scheme in '%s'", ErrInvalidURL, raw)

	default:
		return nil, fmt.Errorf("%w: unsupported scheme '%s'", ErrInvalidURL, u.Scheme)
	}

	return &c, nil
}

func parsePort(p string) (int, error) {
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: invalid port '%s'", ErrInvalidURL, p)
	}
	return port, nil
}

// Address returns host:port for network connections
func (c *ConnectionURL) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ConnectionURL) String() string {
	switch c.Scheme {
	case SchemeTCP, SchemeUDP:
		return fmt.Sprintf("%s://%s", c.Scheme, c.Address())
	case SchemeSerial:
		return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Device, c.Baud)
	default:
		return c.Scheme + "://"
	}
}
