package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"jobmap/cluster"
	"jobmap/pipeline"
	"jobmap/record"
	"jobmap/reduce"
	"jobmap/viz"
)

// ClusterOptions are the per-request knobs. Zero values fall back to the
// server defaults.
type ClusterOptions struct {
	TextField     string   `json:"text_field,omitempty"`
	TopEnd        int      `json:"top_end,omitempty"`
	Method        string   `json:"method,omitempty"`
	DisplayFields []string `json:"display_fields,omitempty"`
	ShowText      *bool    `json:"show_text,omitempty"`
}

type ClusterRequest struct {
	Records []record.Record `json:"records"`
	Options ClusterOptions  `json:"options"`
}

type ClusterResponse struct {
	RunID    string               `json:"run_id"`
	K        int                  `json:"k"`
	Curve    cluster.InertiaCurve `json:"curve"`
	Warnings []cluster.Warning    `json:"warnings"`
	Degraded []int                `json:"degraded"`
	Points   []viz.Point          `json:"points"`
}

type CountRequest struct {
	Records []record.Record `json:"records"`
	Field   string          `json:"field"`
	Limit   int             `json:"limit,omitempty"`
}

// ClusterHandler runs the clustering pipeline over the posted records.
func (s *Server) ClusterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req ClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	runner, opts, err := s.resolve(req.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := runner.Run(r.Context(), req.Records, opts)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("cluster request failed", zap.Int("status", status), zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to cluster records: %v", err), status)
		return
	}

	resp := ClusterResponse{
		RunID:    report.RunID,
		K:        report.K,
		Curve:    report.Curve,
		Warnings: report.Warnings,
		Degraded: report.Degraded,
		Points:   report.Points,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CountHandler returns how often each value of a field occurs.
func (s *Server) CountHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req CountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	field, err := record.ParseField(req.Field)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	counts := viz.CountBy(req.Records, field)
	if req.Limit > 0 && len(counts) > req.Limit {
		counts = counts[:req.Limit]
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(counts)
}

func (s *Server) resolve(o ClusterOptions) (*pipeline.Runner, pipeline.Options, error) {
	opts := s.defaults
	runner := s.runner

	if o.TextField != "" {
		f, err := record.ParseField(o.TextField)
		if err != nil {
			return nil, opts, err
		}
		opts.TextField = f
	}
	if o.TopEnd != 0 {
		opts.TopEnd = o.TopEnd
	}
	if len(o.DisplayFields) > 0 {
		fields := make([]record.Field, 0, len(o.DisplayFields))
		for _, name := range o.DisplayFields {
			f, err := record.ParseField(name)
			if err != nil {
				return nil, opts, err
			}
			fields = append(fields, f)
		}
		opts.Viz.DisplayFields = fields
	}
	if o.ShowText != nil {
		opts.Viz.ShowText = *o.ShowText
	}
	if o.Method != "" {
		m, err := reduce.ParseMethod(o.Method)
		if err != nil {
			return nil, opts, err
		}
		if m != runner.Reducer.Method() {
			reducer, err := reduce.ForMethod(m, s.tsne)
			if err != nil {
				return nil, opts, err
			}
			copied := *runner
			copied.Reducer = reducer
			runner = &copied
		}
	}
	// API runs never write files or points
	opts.Save = false
	if runner.Sink != nil {
		copied := *runner
		copied.Sink = nil
		runner = &copied
	}
	return runner, opts, nil
}

func statusFor(err error) int {
	var stage *pipeline.StageError
	switch {
	case errors.Is(err, pipeline.ErrNoUsableRecords):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cluster.ErrInvalidTopEnd), errors.Is(err, cluster.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.As(err, &stage) && stage.Stage == pipeline.StageValidate:
		return http.StatusBadRequest
	case errors.As(err, &stage) && stage.Stage == pipeline.StageVectorize:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
