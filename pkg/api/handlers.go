package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ethpandaops/toolchainbench/pkg/indexstore"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/go-chi/chi/v5"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// resultSummary describes one result file in the listing.
type resultSummary struct {
	File       string             `json:"file"`
	HostHash   string             `json:"host_hash"`
	SystemInfo store.HostIdentity `json:"system_info"`
	Repos      []string           `json:"repos"`
	ModifiedAt time.Time          `json:"modified_at"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListResults summarizes every result file in the results directory.
func (s *server) handleListResults(w http.ResponseWriter, _ *http.Request) {
	paths, err := store.ListResultFiles(s.resultsDir)
	if err != nil {
		s.log.WithError(err).Error("Failed to list result files")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing result files"})

		return
	}

	summaries := make([]resultSummary, 0, len(paths))

	for _, path := range paths {
		result, err := store.ReadResultFile(path)
		if err != nil {
			s.log.WithError(err).WithField("file", path).
				Warn("Skipping unreadable result file")

			continue
		}

		summary := resultSummary{
			File:       filepath.Base(path),
			HostHash:   indexstore.HostHash(result.SystemInfo),
			SystemInfo: result.SystemInfo,
			Repos:      result.Profiles.Names(),
		}

		if info, err := os.Stat(path); err == nil {
			summary.ModifiedAt = info.ModTime().UTC()
		}

		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleGetResult returns a whole result file.
func (s *server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, ok := s.loadResult(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetResultRepo returns one repo's record from a result file.
func (s *server) handleGetResultRepo(w http.ResponseWriter, r *http.Request) {
	result, ok := s.loadResult(w, r)
	if !ok {
		return
	}

	record, exists := result.Profiles[chi.URLParam(r, "repo")]
	if !exists {
		writeJSON(w, http.StatusNotFound, errorResponse{"repo not found"})

		return
	}

	writeJSON(w, http.StatusOK, record)
}

// loadResult resolves the {file} parameter inside the results directory
// and reads it. It writes the error response itself when it returns false.
func (s *server) loadResult(w http.ResponseWriter, r *http.Request) (*store.ResultFile, bool) {
	name := chi.URLParam(r, "file")

	if !validResultName(name) {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid result file name"})

		return nil, false
	}

	result, err := store.ReadResultFile(filepath.Join(s.resultsDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorResponse{"result file not found"})

			return nil, false
		}

		s.log.WithError(err).WithField("file", name).Error("Failed to read result file")
		writeJSON(w, http.StatusInternalServerError, errorResponse{"reading result file"})

		return nil, false
	}

	return result, true
}

func validResultName(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}

	ok, err := filepath.Match(store.ResultFilePattern, name)

	return err == nil && ok
}

// handleIndexHosts lists indexed hosts.
func (s *server) handleIndexHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.indexStore.ListHosts(r.Context())
	if err != nil {
		s.indexError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, hosts)
}

// handleIndexRepos lists repos that have indexed samples.
func (s *server) handleIndexRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.indexStore.ListRepos(r.Context())
	if err != nil {
		s.indexError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, repos)
}

// handleIndexSamples lists raw samples matching the query filter.
func (s *server) handleIndexSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.indexStore.ListSamples(r.Context(), filterFromQuery(r))
	if err != nil {
		s.indexError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, samples)
}

// handleIndexSizes lists artifact sizes matching the query filter.
func (s *server) handleIndexSizes(w http.ResponseWriter, r *http.Request) {
	sizes, err := s.indexStore.ListOutputSizes(r.Context(), filterFromQuery(r))
	if err != nil {
		s.indexError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, sizes)
}

func (s *server) indexError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("Index query failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{"querying index"})
}

func filterFromQuery(r *http.Request) indexstore.Filter {
	q := r.URL.Query()

	return indexstore.Filter{
		HostHash:     q.Get("host"),
		Repo:         q.Get("repo"),
		Version:      q.Get("version"),
		CompilerMode: q.Get("compiler_mode"),
		ProfileMode:  q.Get("profile_mode"),
	}
}
