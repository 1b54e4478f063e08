package api

import (
	"encoding/json"
	"net/http"
	"time"

	"example.com/trackbook/internal/auth"
	"example.com/trackbook/internal/track"
	"example.com/trackbook/internal/units"
)

// trackStats computes statistics for a decoded point series without storing
// anything. The split length is one distance unit of the requested system.
func (h *Handler) trackStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireClaims(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	var req TrackStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	system, err := units.SystemByName(req.Units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	points := make([]track.Point, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, track.Point{
			Lat:       p.Lat,
			Lon:       p.Lon,
			EleMetres: p.EleMetres,
			Time:      p.Time,
		})
	}

	tr, err := track.New(points)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	lat, lon := tr.Center()
	resp := TrackStatsResponse{
		StartTime:      tr.StartTime(),
		ElapsedSec:     int64(tr.ElapsedTime() / time.Second),
		Elapsed:        units.FormatDuration(tr.ElapsedTime()),
		DistanceMetres: tr.Length(),
		Distance:       system.FormatDistance(tr.Length()),
		AverageSpeed:   system.FormatSpeed(tr.AverageSpeed()),
		MaxSpeed:       system.FormatSpeed(tr.MaxSpeed()),
		AveragePace:    system.FormatPace(tr.AverageSpeed()),
		CenterLat:      lat,
		CenterLon:      lon,
	}

	if tr.HasAltitude() {
		ascent, descent := tr.Ascent(), tr.Descent()
		resp.AscentMetres = &ascent
		resp.Ascent = system.FormatAltitude(ascent)
		resp.DescentMetres = &descent
		resp.Descent = system.FormatAltitude(descent)
		if highest, ok := tr.HighestPoint(); ok {
			resp.HighestPointMetres = &highest
			resp.HighestPoint = system.FormatAltitude(highest)
		}
	}

	for _, split := range tr.Splits(system.Distance.Size) {
		resp.Splits = append(resp.Splits, SplitView{
			Number:    split.Number,
			Time:      units.FormatDuration(split.Time),
			Speed:     system.FormatSpeed(split.SpeedMS),
			Pace:      system.FormatPace(split.SpeedMS),
			NetClimb:  system.FormatAltitude(split.NetClimb),
			Ascent:    system.FormatAltitude(split.Ascent),
			DistanceM: split.DistanceM,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackStatsRequest is the payload for POST /v1/tracks/stats.
type TrackStatsRequest struct {
	Units  string              `json:"units,omitempty"`
	Points []TrackPointRequest `json:"points"`
}

// SplitView is one per-distance-unit interval of a track.
type SplitView struct {
	Number    int     `json:"number"`
	Time      string  `json:"time"`
	Speed     string  `json:"speed"`
	Pace      string  `json:"pace"`
	NetClimb  string  `json:"net_climb"`
	Ascent    string  `json:"ascent"`
	DistanceM float64 `json:"distance_m"`
}

// TrackStatsResponse carries derived statistics for a submitted track.
type TrackStatsResponse struct {
	StartTime          time.Time   `json:"start_time"`
	ElapsedSec         int64       `json:"elapsed_sec"`
	Elapsed            string      `json:"elapsed"`
	DistanceMetres     float64     `json:"distance_m"`
	Distance           string      `json:"distance"`
	AverageSpeed       string      `json:"average_speed"`
	MaxSpeed           string      `json:"max_speed"`
	AveragePace        string      `json:"average_pace"`
	AscentMetres       *float64    `json:"ascent_m,omitempty"`
	Ascent             string      `json:"ascent,omitempty"`
	DescentMetres      *float64    `json:"descent_m,omitempty"`
	Descent            string      `json:"descent,omitempty"`
	HighestPointMetres *float64    `json:"highest_point_m,omitempty"`
	HighestPoint       string      `json:"highest_point,omitempty"`
	CenterLat          float64     `json:"center_lat"`
	CenterLon          float64     `json:"center_lon"`
	Splits             []SplitView `json:"splits,omitempty"`
}
