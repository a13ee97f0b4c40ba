package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airvol/airvol/pkg/types"
)

func TestCandidateURLs(t *testing.T) {
	tests := []struct {
		name       string
		target     types.Target
		forcedPort int
		want       []string
	}{
		{
			name:   "announced port, no path",
			target: types.Target{IP: "10.0.0.5", WSPort: 81},
			want:   []string{"ws://10.0.0.5:81/ws", "ws://10.0.0.5:81/"},
		},
		{
			name:   "announced path first",
			target: types.Target{IP: "10.0.0.5", WSPort: 81, Path: "/vol"},
			want: []string{
				"ws://10.0.0.5:81/vol",
				"ws://10.0.0.5:81/ws",
				"ws://10.0.0.5:81/",
			},
		},
		{
			name:   "announced path equal to default deduplicated",
			target: types.Target{IP: "10.0.0.5", WSPort: 81, Path: "/ws"},
			want:   []string{"ws://10.0.0.5:81/ws", "ws://10.0.0.5:81/"},
		},
		{
			name:       "forced port first, port-major order",
			target:     types.Target{IP: "10.0.0.5", WSPort: 81, Path: "/vol"},
			forcedPort: 8080,
			want: []string{
				"ws://10.0.0.5:8080/vol",
				"ws://10.0.0.5:8080/ws",
				"ws://10.0.0.5:8080/",
				"ws://10.0.0.5:81/vol",
				"ws://10.0.0.5:81/ws",
				"ws://10.0.0.5:81/",
			},
		},
		{
			name:       "forced port equal to announced, no duplicate",
			target:     types.Target{IP: "10.0.0.5", WSPort: 81},
			forcedPort: 81,
			want:       []string{"ws://10.0.0.5:81/ws", "ws://10.0.0.5:81/"},
		},
		{
			name:       "forced port with no announced port",
			target:     types.Target{IP: "10.0.0.5"},
			forcedPort: 81,
			want:       []string{"ws://10.0.0.5:81/ws", "ws://10.0.0.5:81/"},
		},
		{
			name:   "no ports at all",
			target: types.Target{IP: "10.0.0.5"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := candidateURLs(&tt.target, tt.forcedPort)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDelay(t *testing.T) {
	min := time.Second
	max := 30 * time.Second

	// Non-decreasing and bounded.
	delay := min
	prev := delay
	for i := 0; i < 20; i++ {
		delay = nextDelay(delay, min, max)
		assert.GreaterOrEqual(t, delay, prev)
		assert.GreaterOrEqual(t, delay, min)
		assert.LessOrEqual(t, delay, max)
		prev = delay
	}
	assert.Equal(t, max, delay, "repeated growth saturates at max")

	assert.Equal(t, 1500*time.Millisecond, nextDelay(time.Second, min, max))
	assert.Equal(t, min, nextDelay(0, min, max), "floor applies")
}
