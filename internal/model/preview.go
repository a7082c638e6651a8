package model

import (
	"fmt"
)

// PreviewEndpoint is the address published once a process inside the sandbox
// starts accepting inbound connections. Absent until the network-ready signal
// fires; cleared on teardown or reset.
type PreviewEndpoint struct {
	Host string
	Port int
}

// URL returns the endpoint as a browsable HTTP URL.
func (p PreviewEndpoint) URL() string {
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, p.Port)
}
