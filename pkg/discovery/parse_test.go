package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		name   string
		value  interface{}
		want   int
		wantOK bool
	}{
		{"int", float64(81), 81, true},
		{"string digits", "81", 81, true},
		{"string float rounds down", "81.3", 81, true},
		{"string float rounds up", "81.7", 82, true},
		{"float rounds", 8080.5, 8081, true}, // round half away handled by math.Round
		{"zero", float64(0), 0, false},
		{"negative", float64(-1), 0, false},
		{"negative string", "-5", 0, false},
		{"too large", float64(70000), 0, false},
		{"non-numeric string", "eighty", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePort(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnnounce(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		data       string
		sender     string
		wantReason string
		wantIP     string
		wantPort   int
		wantName   string
		wantPath   string
	}{
		{
			name:     "full announce",
			data:     `{"service":"airvol","type":"announce","ip":"10.0.0.5","ws_port":81,"name":"Studio","ws_path":"/stream"}`,
			sender:   "10.0.0.99",
			wantIP:   "10.0.0.5",
			wantPort: 81,
			wantName: "Studio",
			wantPath: "/stream",
		},
		{
			name:     "announce without ip uses sender",
			data:     `{"service":"airvol","type":"announce","ws_port":81}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 81,
		},
		{
			name:     "response type accepted",
			data:     `{"service":"airvol","type":"response","ws_port":"8080"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 8080,
		},
		{
			name:     "wsPort alias",
			data:     `{"service":"airvol","type":"announce","wsPort":82}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 82,
		},
		{
			name:     "port alias with fractional string",
			data:     `{"service":"airvol","type":"announce","port":"81.6"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 82,
		},
		{
			name:     "device_name alias",
			data:     `{"service":"airvol","type":"announce","ws_port":81,"device_name":"Kitchen"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 81,
			wantName: "Kitchen",
		},
		{
			name:     "path alias",
			data:     `{"service":"airvol","type":"announce","ws_port":81,"path":"/v2"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 81,
			wantPath: "/v2",
		},
		{
			name:     "path without leading slash ignored",
			data:     `{"service":"airvol","type":"announce","ws_port":81,"ws_path":"stream"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 81,
			wantPath: "",
		},
		{
			name:     "empty ip field falls back to sender",
			data:     `{"service":"airvol","type":"announce","ip":"","ws_port":81}`,
			sender:   "10.0.0.8",
			wantIP:   "10.0.0.8",
			wantPort: 81,
		},
		{
			name:     "unrecognized extra fields ignored",
			data:     `{"service":"airvol","type":"announce","ws_port":81,"firmware":"2.1","mac":"aa:bb"}`,
			sender:   "10.0.0.7",
			wantIP:   "10.0.0.7",
			wantPort: 81,
		},
		{
			name:       "self probe silently ignored",
			data:       `{"service":"airvol","type":"discover"}`,
			sender:     "10.0.0.7",
			wantReason: dropSelf,
		},
		{
			name:       "wrong service",
			data:       `{"service":"other","type":"announce","ws_port":81}`,
			sender:     "10.0.0.7",
			wantReason: dropService,
		},
		{
			name:       "missing service",
			data:       `{"type":"announce","ws_port":81}`,
			sender:     "10.0.0.7",
			wantReason: dropService,
		},
		{
			name:       "missing type",
			data:       `{"service":"airvol","ws_port":81}`,
			sender:     "10.0.0.7",
			wantReason: dropNoType,
		},
		{
			name:       "unknown type",
			data:       `{"service":"airvol","type":"goodbye","ws_port":81}`,
			sender:     "10.0.0.7",
			wantReason: dropBadType,
		},
		{
			name:       "missing port",
			data:       `{"service":"airvol","type":"announce"}`,
			sender:     "10.0.0.7",
			wantReason: dropNoPort,
		},
		{
			name:       "non-positive port",
			data:       `{"service":"airvol","type":"announce","ws_port":0}`,
			sender:     "10.0.0.7",
			wantReason: dropNoPort,
		},
		{
			name:       "unparsable port",
			data:       `{"service":"airvol","type":"announce","ws_port":"loud"}`,
			sender:     "10.0.0.7",
			wantReason: dropNoPort,
		},
		{
			name:       "not json",
			data:       `hello`,
			sender:     "10.0.0.7",
			wantReason: dropMalformed,
		},
		{
			name:       "json array",
			data:       `[1,2]`,
			sender:     "10.0.0.7",
			wantReason: dropMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, reason := parseAnnounce([]byte(tt.data), tt.sender, "airvol", now)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
				assert.Nil(t, target)
				return
			}
			require.Equal(t, dropNone, reason)
			require.NotNil(t, target)
			assert.Equal(t, tt.wantIP, target.IP)
			assert.Equal(t, tt.wantPort, target.WSPort)
			assert.Equal(t, tt.wantName, target.Name)
			assert.Equal(t, tt.wantPath, target.Path)
			assert.Equal(t, now, target.LastSeen)
		})
	}
}
