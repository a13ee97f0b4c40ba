package discovery

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/airvol/airvol/pkg/types"
)

// Drop reasons returned by parseAnnounce. dropSelf is our own probe
// observed via loopback and is not logged.
const (
	dropNone      = ""
	dropSelf      = "self probe"
	dropMalformed = "malformed json"
	dropService   = "service mismatch"
	dropNoType    = "missing type"
	dropBadType   = "unrecognized type"
	dropNoPort    = "missing or unusable port"
)

var portKeys = []string{"ws_port", "wsPort", "port"}

// parseAnnounce decodes a discovery datagram into a target candidate.
// senderIP is the UDP source address, used when the payload does not
// carry a usable ip field. A non-empty reason means the datagram was
// dropped.
func parseAnnounce(data []byte, senderIP string, service string, now time.Time) (*types.Target, string) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, dropMalformed
	}

	if svc, _ := obj["service"].(string); svc != service {
		return nil, dropService
	}

	typ, ok := obj["type"].(string)
	if !ok {
		return nil, dropNoType
	}
	switch typ {
	case "discover":
		return nil, dropSelf
	case "announce", "response":
	default:
		return nil, dropBadType
	}

	port := 0
	for _, key := range portKeys {
		v, present := obj[key]
		if !present {
			continue
		}
		if p, ok := parsePort(v); ok {
			port = p
			break
		}
	}
	if port == 0 {
		return nil, dropNoPort
	}

	ip := senderIP
	if v, _ := obj["ip"].(string); v != "" {
		ip = v
	}

	name, _ := obj["name"].(string)
	if name == "" {
		name, _ = obj["device_name"].(string)
	}

	path, _ := obj["ws_path"].(string)
	if path == "" {
		path, _ = obj["path"].(string)
	}
	if !strings.HasPrefix(path, "/") {
		path = ""
	}

	return &types.Target{
		IP:       ip,
		WSPort:   port,
		Name:     name,
		Path:     path,
		LastSeen: now,
	}, dropNone
}

// parsePort accepts JSON numbers and numeric strings, rounding
// fractional values. Non-positive or out-of-range results are rejected.
func parsePort(v interface{}) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	port := int(math.Round(f))
	if port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
