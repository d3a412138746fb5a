package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/contagion/models"
	"github.com/aukilabs/contagion/quadtree"
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// Status describes a running simulation.
type Status struct {
	RunID        string             `json:"run_id"`
	Version      string             `json:"version"`
	Config       simulation.Config  `json:"config"`
	FeatureFlags []string           `json:"feature_flags"`
	Latest       *simulation.Report `json:"latest,omitempty"`
	Index        quadtree.DebugInfo `json:"index"`
	Observers    int                `json:"observers"`
}

// StatusOptions holds what HandleStatus reports on.
type StatusOptions struct {
	RunID   string
	Version string
	Runner  *simulation.Runner

	// Returns the number of connected observers. Optional.
	Observers func() int
}

// HandleStatus responds with the status of the simulation as JSON.
func HandleStatus(opts StatusOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		s := opts.Runner.Simulation
		conf := s.Config()

		status := Status{
			RunID:        opts.RunID,
			Version:      opts.Version,
			Config:       conf,
			FeatureFlags: conf.FeatureFlags.List(),
			Index:        s.IndexDebugInfo(),
		}
		if latest, ok := opts.Runner.Latest(); ok {
			status.Latest = &latest
		}
		if opts.Observers != nil {
			status.Observers = opts.Observers()
		}

		writeJSON(w, http.StatusOK, status)
	}
}

// Neighbors is the response of HandleNeighbors.
type Neighbors struct {
	Position  quadtree.Point    `json:"position"`
	Radius    float64           `json:"radius"`
	Neighbors []models.Resident `json:"neighbors"`
}

// HandleNeighbors responds with the persons within the influence radius of
// the position given by the x and y query parameters.
func HandleNeighbors(s *simulation.Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		x, errX := strconv.Atoi(query.Get("x"))
		y, errY := strconv.Atoi(query.Get("y"))
		if errX != nil || errY != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "x and y must be integers",
			})
			return
		}

		p := quadtree.Point{X: x, Y: y}
		neighbors, err := s.Neighbors(p)
		if err != nil {
			logs.Warn(errors.New("querying neighbors failed").
				WithType(errors.Type(err)).
				WithTag("position", p).
				Wrap(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error: errors.Type(err),
			})
			return
		}

		if neighbors == nil {
			neighbors = []models.Resident{}
		}

		writeJSON(w, http.StatusOK, Neighbors{
			Position:  p,
			Radius:    s.Config().InfluenceRadius,
			Neighbors: neighbors,
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warn(errors.New("writing json response failed").Wrap(err))
	}
}
