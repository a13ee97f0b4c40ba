package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/airvol/airvol/pkg/types"
)

// candidateURLs builds the ordered list of WebSocket URLs to try for a
// target. Ports: forced port first (when set), then the announced port
// if different. Paths: announced path first (when valid), then "/ws",
// then "/", deduplicated preserving order. The result is the cartesian
// product, port-major.
func candidateURLs(t *types.Target, forcedPort int) []string {
	var ports []int
	if forcedPort != 0 {
		ports = append(ports, forcedPort)
		if t.WSPort != 0 && t.WSPort != forcedPort {
			ports = append(ports, t.WSPort)
		}
	} else if t.WSPort != 0 {
		ports = append(ports, t.WSPort)
	}

	var paths []string
	seen := make(map[string]bool)
	for _, p := range []string{t.Path, "/ws", "/"} {
		if !strings.HasPrefix(p, "/") || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}

	urls := make([]string, 0, len(ports)*len(paths))
	for _, port := range ports {
		for _, path := range paths {
			urls = append(urls, fmt.Sprintf("ws://%s:%d%s", t.IP, port, path))
		}
	}
	return urls
}

// nextDelay grows a retry delay by 1.5x, capped at max and floored at min.
func nextDelay(delay, min, max time.Duration) time.Duration {
	delay = delay * 3 / 2
	if delay > max {
		delay = max
	}
	if delay < min {
		delay = min
	}
	return delay
}
