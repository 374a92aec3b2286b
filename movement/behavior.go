package movement

import (
	"math"

	"github.com/signalsfoundry/scenario-editor/model"
)

// Fold maps a distance travelled along a path of the given length to a
// fraction of the path in [0, 1] and the current direction. With loop the
// node jumps back to the start at the end; with bounce it retraces the
// path.
func Fold(b model.PathBehavior, travelled, length float64) (fraction float64, forward bool) {
	if length <= 0 || travelled <= 0 || math.IsNaN(travelled) {
		return 0, true
	}
	switch b {
	case model.BehaviorBounce:
		m := math.Mod(travelled, 2*length)
		if m <= length {
			return m / length, true
		}
		return (2*length - m) / length, false
	default:
		return math.Mod(travelled, length) / length, true
	}
}
