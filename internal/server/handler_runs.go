package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/tickos/internal/chart"
	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/firmware"
	"github.com/me/tickos/internal/store"
	"github.com/me/tickos/pkg/model"
)

const maxManifestBytes = 1 << 20

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if state := q.Get("state"); state != "" {
		opts.State = model.RunState(state)
	}
	opts.Name = q.Get("name")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(w, reqID, "limit", "limit must be an integer")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(w, reqID, "offset", "offset must be an integer")
			return
		}
		opts.Offset = n
	}
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	respondList(w, reqID, runs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

// handleCreateRun simulates the YAML manifest in the request body for
// ?ticks= ticks and records the result.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	ticks, err := parseTick(r.URL.Query().Get("ticks"))
	if err != nil || ticks == 0 || ticks > s.maxTicks {
		respondBadRequest(w, reqID, "ticks", fmt.Sprintf("ticks must be between 1 and %d", s.maxTicks))
		return
	}
	body, ok := s.readManifest(w, r, reqID)
	if !ok {
		return
	}
	m, ok := s.parseManifest(w, reqID, body)
	if !ok {
		return
	}
	// Requests are never paced against the wall clock.
	m.Board.Realtime = false

	fw, err := firmware.Build(m, s.logger)
	if err != nil {
		respondError(w, reqID, http.StatusUnprocessableEntity,
			&model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}
	defer fw.Close()

	run, events, err := fw.Simulate(r.Context(), ticks)
	if err != nil {
		respondError(w, reqID, http.StatusUnprocessableEntity,
			&model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}
	run.Manifest = string(body)
	if err := store.Record(r.Context(), s.store, run, events); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("run recorded", "id", run.ID, "name", run.Name, "state", run.State, "ticks", run.Ticks)
	respondCreated(w, reqID, run)
}

func (s *Server) handleValidateManifest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	body, ok := s.readManifest(w, r, reqID)
	if !ok {
		return
	}
	m, ok := s.parseManifest(w, reqID, body)
	if !ok {
		return
	}
	respondOK(w, reqID, map[string]any{
		"valid": true,
		"name":  m.Name,
		"fpu":   m.FPU().String(),
		"tasks": len(m.Tasks),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondNotFound(w, reqID, "run", id)
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	run, ok := s.lookupRun(w, r, reqID)
	if !ok {
		return
	}
	if err := s.store.DeleteRun(r.Context(), run.ID); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": run.ID, "status": "deleted"})
}

func (s *Server) handleListSwitches(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	run, ok := s.lookupRun(w, r, reqID)
	if !ok {
		return
	}
	from, err := parseTick(r.URL.Query().Get("from"))
	if err != nil {
		respondBadRequest(w, reqID, "from", "from must be a tick number")
		return
	}
	to, err := parseTick(r.URL.Query().Get("to"))
	if err != nil {
		respondBadRequest(w, reqID, "to", "to must be a tick number")
		return
	}

	events, err := s.store.ListSwitches(r.Context(), run.ID, from, to)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if events == nil {
		events = []model.SwitchEvent{}
	}
	respondOK(w, reqID, events)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	run, ok := s.lookupRun(w, r, reqID)
	if !ok {
		return
	}
	tasks := run.Tasks
	if tasks == nil {
		tasks = []model.TaskReport{}
	}
	respondOK(w, reqID, tasks)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	run, ok := s.lookupRun(w, r, reqID)
	if !ok {
		return
	}

	opts := chart.DefaultOptions()
	q := r.URL.Query()
	var err error
	if opts.From, err = parseTick(q.Get("from")); err != nil {
		respondBadRequest(w, reqID, "from", "from must be a tick number")
		return
	}
	if opts.To, err = parseTick(q.Get("to")); err != nil {
		respondBadRequest(w, reqID, "to", "to must be a tick number")
		return
	}
	if v := q.Get("width"); v != "" {
		if opts.Width, err = strconv.Atoi(v); err != nil {
			respondBadRequest(w, reqID, "width", "width must be an integer")
			return
		}
	}

	events, err := s.store.ListSwitches(r.Context(), run.ID, 0, 0)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	var buf bytes.Buffer
	if err := chart.WritePNG(&buf, run, events, opts); err != nil {
		respondBadRequest(w, reqID, "chart", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// lookupRun loads the {id} run, writing the error response itself when it
// cannot.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request, reqID string) (*model.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return nil, false
	}
	if run == nil {
		respondNotFound(w, reqID, "run", id)
		return nil, false
	}
	return run, true
}

func (s *Server) readManifest(w http.ResponseWriter, r *http.Request, reqID string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxManifestBytes))
	if err != nil {
		respondBadRequest(w, reqID, "body", "cannot read manifest: "+err.Error())
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		respondBadRequest(w, reqID, "body", "manifest body is empty")
		return nil, false
	}
	return body, true
}

func (s *Server) parseManifest(w http.ResponseWriter, reqID string, body []byte) (*config.Manifest, bool) {
	m, err := config.Parse(body)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			respondError(w, reqID, http.StatusBadRequest, apiErr)
		} else {
			respondBadRequest(w, reqID, "body", err.Error())
		}
		return nil, false
	}
	return m, true
}

// parseTick parses an optional tick query value; empty is zero.
func parseTick(v string) (uint32, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
