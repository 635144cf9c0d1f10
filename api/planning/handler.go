// Package planning exposes the schedule grid and submission state over HTTP.
package planning

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/core/submit"
)

// EntityInfo describes one resolved planning entity.
type EntityInfo struct {
	EntityID string `json:"entity_id"`
	Title    string `json:"title"`
	Program  string `json:"program"`
	Selected bool   `json:"selected"`
}

// Service is the subset of the application the handlers need.
type Service interface {
	Entities() []EntityInfo
	Grid(entityID string) (schedule.Grid, error)
	SetCell(entityID string, day, hour int, mode byte) error
	Discard(entityID string) error
	Select(entityID string) error
	Submit(entityID string) error
	SubmissionStatus(entityID string) submit.Status
}

// ErrUnknownEntity is returned by Service implementations when the identifier
// does not resolve to a live planning entity.
var ErrUnknownEntity = errors.New("planning: unknown entity")

// NewHandler returns an HTTP handler exposing the planning API.
func NewHandler(svc Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/planning/entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, svc.Entities())
	})
	mux.HandleFunc("/api/planning/schedule", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getSchedule(svc, w, r)
		case http.MethodPut:
			putCell(svc, w, r)
		case http.MethodDelete:
			deleteSchedule(svc, w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/planning/selection", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		putSelection(svc, w, r)
	})
	mux.HandleFunc("/api/planning/submit", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		postSubmit(svc, w, r)
	})
	mux.HandleFunc("/api/planning/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("entity")
		if id == "" {
			http.Error(w, "entity is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, svc.SubmissionStatus(id))
	})
	return mux
}

type scheduleResponse struct {
	EntityID string   `json:"entity_id"`
	Days     []string `json:"days"`
	Encoded  string   `json:"encoded"`
}

func getSchedule(svc Service, w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("entity")
	if id == "" {
		http.Error(w, "entity is required", http.StatusBadRequest)
		return
	}
	g, err := svc.Grid(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	days := make([]string, schedule.Days)
	for d := 0; d < schedule.Days; d++ {
		days[d] = string(g[d][:])
	}
	writeJSON(w, scheduleResponse{EntityID: id, Days: days, Encoded: schedule.Encode(g)})
}

func deleteSchedule(svc Service, w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("entity")
	if id == "" {
		http.Error(w, "entity is required", http.StatusBadRequest)
		return
	}
	if err := svc.Discard(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectionRequest struct {
	EntityID string `json:"entity_id"`
}

func putSelection(svc Service, w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.Select(req.EntityID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cellRequest struct {
	EntityID string `json:"entity_id"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Mode     string `json:"mode"`
}

func putCell(svc Service, w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Mode) != 1 {
		http.Error(w, "mode must be a single character", http.StatusBadRequest)
		return
	}
	if err := svc.SetCell(req.EntityID, req.Day, req.Hour, req.Mode[0]); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	EntityID string `json:"entity_id"`
}

func postSubmit(svc Service, w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.Submit(req.EntityID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
