package wireclient

import (
	"fmt"
	"net/url"
	"strconv"
)

// ParseEndpoint parses proto://host[:port] into an Endpoint, pairing it
// with instanceName (spec §6: "Endpoint: (protocol ∈ {http, https},
// host, port, instance_name), parsed from proto://host[:port] with
// empty path required"). Port defaults to 80 for http and 443 for
// https when omitted.
func ParseEndpoint(raw, instanceName string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("wireclient: invalid endpoint %q: %w", raw, err)
	}
	var https bool
	switch u.Scheme {
	case "http":
		https = false
	case "https":
		https = true
	default:
		return Endpoint{}, fmt.Errorf("wireclient: endpoint scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("wireclient: endpoint %q missing host", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return Endpoint{}, fmt.Errorf("wireclient: endpoint %q must have an empty path, got %q", raw, u.Path)
	}
	if instanceName == "" {
		return Endpoint{}, fmt.Errorf("wireclient: instance name must not be empty")
	}

	host := u.Hostname()
	port := 80
	if https {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("wireclient: invalid port in endpoint %q: %w", raw, err)
		}
		port = n
	}

	return Endpoint{HTTPS: https, Host: host, Port: port, InstanceName: instanceName}, nil
}
