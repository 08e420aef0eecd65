package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/outletsync/internal/core"
	"github.com/JonMunkholm/outletsync/internal/feed"
	"github.com/JonMunkholm/outletsync/internal/logging"
)

// BatchResponse is the body of a processed batch.
type BatchResponse struct {
	BatchID    string            `json:"batch_id"`
	Strategy   core.Strategy     `json:"strategy"`
	Rows       int               `json:"rows"`
	FailedRows int               `json:"failed_rows"`
	Errors     []core.ErrorEntry `json:"errors"`
}

// batchParams are the query parameters of POST /api/batches.
type batchParams struct {
	storeID    int64
	approverID int64
	strategy   core.Strategy
	format     feed.Format
}

// handleSubmitBatch decodes a feed and runs it synchronously.
//
//	POST /api/batches?store=1&approver=7&strategy=batched&format=csv
//
// Row failures are part of a 200 response; non-2xx statuses mean the batch
// did not run.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBatchParams(r)
	if err != nil {
		s.reject(w, r, err)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", "5")
		s.reject(w, r, err)
		return
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxBodySize)
	records, err := feed.Decode(ctx, body, p.format)
	if err != nil {
		s.reject(w, r, err)
		return
	}

	logger := logging.ForBatch(ctx, p.approverID, string(p.format))
	result, err := s.engine.Process(ctx, core.Request{
		StoreID:    p.storeID,
		ApproverID: p.approverID,
		Records:    records,
		Strategy:   p.strategy,
		Logger:     logger,
	})
	if err != nil {
		s.reject(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, newBatchResponse(result))
}

func newBatchResponse(res *core.Result) BatchResponse {
	failed := make(map[int]struct{}, len(res.Errors))
	for _, e := range res.Errors {
		failed[e.Row] = struct{}{}
	}
	entries := res.Errors
	if entries == nil {
		entries = []core.ErrorEntry{}
	}
	return BatchResponse{
		BatchID:    res.BatchID.String(),
		Strategy:   res.Strategy,
		Rows:       res.Rows,
		FailedRows: len(failed),
		Errors:     entries,
	}
}

func (s *Server) parseBatchParams(r *http.Request) (batchParams, error) {
	q := r.URL.Query()
	p := batchParams{approverID: s.cfg.Outlet.ApproverID}

	storeID, err := strconv.ParseInt(q.Get("store"), 10, 64)
	if err != nil || storeID <= 0 {
		return p, badRequest("store must be a positive integer", err)
	}
	p.storeID = storeID

	if raw := q.Get("approver"); raw != "" {
		approver, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || approver < 0 {
			return p, badRequest("approver must be a non-negative integer", err)
		}
		p.approverID = approver
	}

	if raw := q.Get("strategy"); raw != "" {
		strategy, err := core.ParseStrategy(raw)
		if err != nil {
			return p, badRequest(err.Error(), err)
		}
		p.strategy = strategy
	}

	switch raw := q.Get("format"); {
	case raw != "":
		format, err := feed.ParseFormat(raw)
		if err != nil {
			return p, badRequest(fmt.Sprintf("format %q is not json or csv", raw), err)
		}
		p.format = format
	default:
		// An unrecognized content type falls back to sniffing the body.
		p.format, _ = feed.ParseFormat(r.Header.Get("Content-Type"))
	}
	return p, nil
}

// reject records a batch that did not run and writes the error.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if s.metrics != nil && ae.Reason != "" {
		s.metrics.BatchRejected(ae.Reason)
	}
	writeError(w, r, ae)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Batches LimiterStatus `json:"batches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	batches := s.limiter.Status()
	status := "ok"
	if batches.Available == 0 {
		status = "busy"
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: status, Batches: batches})
}
