package sim

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Summary is the end-of-run report. A car that arrived and was later
// re-dispatched counts both as Arrived (it completed a route) and under
// its current state.
type Summary struct {
	CarsTotal int
	Arrived   int
	Driving   int
	Waiting   int

	AvgDriveSteps    float64
	AvgWaitSteps     float64
	AvgStepsToArrive float64
}

// Summarize computes the run summary from the fleet's final state. It is
// valid regardless of how many cars failed mid-run.
func (co *Coordinator) Summarize() Summary {
	s := Summary{CarsTotal: len(co.cars)}

	drive := make([]float64, 0, len(co.cars))
	wait := make([]float64, 0, len(co.cars))
	var arrivals []float64

	for _, c := range co.cars {
		drive = append(drive, float64(c.TotalDriveSteps))
		wait = append(wait, float64(c.TotalWaitSteps))
		if c.Arrived() {
			s.Arrived++
			arrivals = append(arrivals, float64(c.ArrivalStep))
		}
		switch {
		case c.State == StateDriving:
			s.Driving++
		case !c.Arrived():
			s.Waiting++
		}
	}

	s.AvgDriveSteps = stat.Mean(drive, nil)
	s.AvgWaitSteps = stat.Mean(wait, nil)
	if len(arrivals) > 0 {
		s.AvgStepsToArrive = stat.Mean(arrivals, nil)
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulation summary:\n")
	fmt.Fprintf(&b, "cars_total=%d arrived=%d driving=%d waiting=%d\n",
		s.CarsTotal, s.Arrived, s.Driving, s.Waiting)
	fmt.Fprintf(&b, "avg_drive_steps=%.2f\n", s.AvgDriveSteps)
	fmt.Fprintf(&b, "avg_wait_steps=%.2f", s.AvgWaitSteps)
	if s.Arrived > 0 {
		fmt.Fprintf(&b, "\navg_steps_to_arrive=%.2f", s.AvgStepsToArrive)
	}
	return b.String()
}
