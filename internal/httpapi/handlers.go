package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type nameRequest struct {
	Name string `json:"name"`
}

type columnRequest struct {
	Name string           `json:"name"`
	Info *types.Descriptor `json:"info"`
}

type rowRequest struct {
	Table  string             `json:"table"`
	Values []types.ValueInput `json:"values"`
}

// Databases

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.store.CreateDatabase(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.store.ListDatabases(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDatabase(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRenameDatabase(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.store.RenameDatabase(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDatabase(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tables

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.store.CreateTable(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.store.ListTables(r.Context(), r.PathValue("id"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTable(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.store.RenameTable(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTable(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Columns

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Info == nil {
		s.writeError(w, r, types.WithField("info", fmt.Errorf("%w: info is required", types.ErrInvalidData)))
		return
	}
	c, err := s.store.CreateColumn(r.Context(), r.PathValue("id"), req.Name, *req.Info)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListColumns(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetColumn(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteColumn(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rows

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if !s.decode(w, r, &req) {
		return
	}
	row, err := s.store.CreateRow(r.Context(), r.PathValue("id"), req.Values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query := types.RowQuery{Search: r.URL.Query().Get("search_string"), Page: page}
	list, err := s.store.ListRows(r.Context(), r.PathValue("id"), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.GetRow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if !s.decode(w, r, &req) {
		return
	}
	row, err := s.store.UpdateRow(r.Context(), r.PathValue("id"),
		types.RowUpdate{TableID: req.Table, Values: req.Values})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRow(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON request body into v, writing a 400 response and
// returning false if it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed request body: %v", types.ErrInvalidData, err))
		return false
	}
	return true
}

// pageFromQuery reads the optional limit and offset query parameters.
func pageFromQuery(r *http.Request) (types.Page, error) {
	var page types.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, types.WithField(p.name,
				fmt.Errorf("%w: %s must be a non-negative integer", types.ErrInvalidData, p.name))
		}
		*p.dst = n
	}
	return page, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
