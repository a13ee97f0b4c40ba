package volume

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/airvol/airvol/pkg/types"
)

// RawMax is the upper bound of the device's raw ADC volume domain.
const RawMax = 4095

// percentKeys are checked in order before falling back to "raw".
var percentKeys = []string{"percent", "pct", "volume_percent"}

// Interpret decodes a streaming payload into a volume sample.
// Payloads that are not JSON objects, or that carry none of the known
// keys with a numeric value, yield ok=false and are simply ignored.
func Interpret(payload []byte) (types.VolumeSample, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return types.VolumeSample{}, false
	}

	for _, key := range percentKeys {
		v, present := obj[key]
		if !present {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			continue
		}
		return types.VolumeSample{
			Percent:   clampRound(f),
			SourceKey: key,
		}, true
	}

	if v, present := obj["raw"]; present {
		f, ok := asFloat(v)
		if !ok {
			return types.VolumeSample{}, false
		}
		return types.VolumeSample{
			Percent:   clampRound(f * 100 / RawMax),
			SourceKey: "raw",
		}, true
	}

	return types.VolumeSample{}, false
}

// asFloat accepts JSON numbers and finite numeric strings. ParseFloat
// admits "NaN" and "Inf", which would defeat the clamp.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clampRound(f float64) int {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(math.Round(f))
}
