// Package telemetry decodes hardware watch snapshots and turns the pressure
// reading into a console bar.
package telemetry

import (
	"encoding/json"
	"math"

	"codeberg.org/mutker/pressurebar/internal/errors"
)

const (
	// WatchHardware asks the server for inputs.pressureFullscale every 0.2s.
	WatchHardware = `subscription WatchHardware {
  watch(period: 0.2) {
    inputs {
      pressureFullscale
    }
  }
}
`

	// PressurePath is the field path read out of each snapshot.
	PressurePath = "watch.inputs.pressureFullscale"

	// FullScale is the largest raw reading of the 16-bit pressure ADC.
	FullScale = math.MaxUint16
)

// Snapshot is one decoded watch message.
type Snapshot struct {
	PressureFullscale uint16
}

type watchResult struct {
	Watch *struct {
		Inputs *struct {
			PressureFullscale *float64 `json:"pressureFullscale"`
		} `json:"inputs"`
	} `json:"watch"`
}

// Decode parses the data object of a WatchHardware result. A missing or
// non-numeric field is a shape mismatch; a non-integer or out-of-range number
// is rejected rather than clamped.
func Decode(data json.RawMessage) (Snapshot, error) {
	errFactory := errors.New()

	var res watchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return Snapshot{}, errFactory.Wrap(ErrShapeMismatch, err)
	}

	if res.Watch == nil || res.Watch.Inputs == nil || res.Watch.Inputs.PressureFullscale == nil {
		return Snapshot{}, errFactory.WithData(ErrShapeMismatch, "missing "+PressurePath)
	}

	raw := *res.Watch.Inputs.PressureFullscale
	if raw != math.Trunc(raw) || raw < 0 || raw > FullScale {
		return Snapshot{}, errFactory.WithData(ErrReadingOutOfRange, raw)
	}

	return Snapshot{PressureFullscale: uint16(raw)}, nil
}
