package docker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sandpad/sandpad/internal/model"
)

const (
	netReadyPollInterval = 250 * time.Millisecond
	netReadyDialTimeout  = 200 * time.Millisecond
)

// NotifyNetworkReady polls the sandbox container address on the candidate
// ports until one accepts a TCP connection, then delivers the preview
// endpoint and closes the channel. Cancelling ctx stops the probe.
func (e *Engine) NotifyNetworkReady(ctx context.Context, id string, ports []int) (<-chan model.PreviewEndpoint, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("at least one candidate port is required")
	}

	info, err := e.client.ContainerInspect(ctx, e.containerName(id))
	if err != nil {
		return nil, fmt.Errorf("could not inspect sandbox %s: %w", id, err)
	}

	host := ""
	if info.NetworkSettings != nil {
		host = info.NetworkSettings.IPAddress
	}
	if host == "" {
		return nil, fmt.Errorf("sandbox %s has no network address", id)
	}

	ch := make(chan model.PreviewEndpoint, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(netReadyPollInterval)
		defer ticker.Stop()

		for {
			for _, port := range ports {
				addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
				conn, err := net.DialTimeout("tcp", addr, netReadyDialTimeout)
				if err != nil {
					continue
				}
				conn.Close()

				e.logger.Debugf("Sandbox %s network ready on %s", id, addr)
				ch <- model.PreviewEndpoint{Host: host, Port: port}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch, nil
}
