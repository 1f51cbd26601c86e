package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmaddaus/issueboard/internal/board"
	"github.com/jmaddaus/issueboard/internal/github"
	"github.com/jmaddaus/issueboard/internal/model"
	"github.com/jmaddaus/issueboard/internal/positions"
	"github.com/jmaddaus/issueboard/internal/store"
)

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "marshal error: "+err.Error())
		return
	}
	w.WriteHeader(status)
	w.Write(data)
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// boardErrorStatus maps a board service error to an HTTP status.
// Anything unrecognized came from the upstream fetch.
func boardErrorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRepoURL):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, positions.ErrUnknownColumn), errors.Is(err, positions.ErrNotInColumn):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// repoURLParam reads the required repo_url query parameter.
func repoURLParam(r *http.Request) (string, error) {
	u := strings.TrimSpace(r.URL.Query().Get("repo_url"))
	if u == "" {
		return "", fmt.Errorf("repo_url query parameter is required")
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (d *Daemon) health(w http.ResponseWriter, r *http.Request) {
	keys, err := d.store.Keys(r.Context(), model.PositionsKeyPrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stored := make([]string, len(keys))
	for i, k := range keys {
		stored[i] = strings.TrimPrefix(k, model.PositionsKeyPrefix)
	}

	resp := map[string]interface{}{
		"status": "ok",
		"boards": d.boards.Loaded(),
		"stored": stored,
	}

	// Include uptime if the daemon has been started via Run().
	if !d.startedAt.IsZero() {
		resp["uptime"] = time.Since(d.startedAt).Round(time.Second).String()
	}

	if rl, ok := d.fetcher.(interface{ GetRateLimit() github.RateLimit }); ok {
		if limit := rl.GetRateLimit(); !limit.Reset.IsZero() {
			resp["github_rate_limit"] = map[string]interface{}{
				"remaining": limit.Remaining,
				"reset":     limit.Reset.Format(time.RFC3339),
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Boards
// ---------------------------------------------------------------------------

type loadBoardRequest struct {
	RepoURL string `json:"repo_url"`
}

func (d *Daemon) loadBoard(w http.ResponseWriter, r *http.Request) {
	var req loadBoardRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}

	b, err := d.boards.Load(r.Context(), strings.TrimSpace(req.RepoURL))
	if err != nil {
		writeError(w, boardErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (d *Daemon) getBoard(w http.ResponseWriter, r *http.Request) {
	repoURL, err := repoURLParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := d.boards.Get(repoURL)
	if err != nil {
		writeError(w, boardErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type moveRequest struct {
	RepoURL string `json:"repo_url"`
	model.MoveCommand
}

func (d *Daemon) moveIssue(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}

	b, err := d.boards.Move(r.Context(), strings.TrimSpace(req.RepoURL), req.MoveCommand)
	if err != nil {
		writeError(w, boardErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

type positionsResponse struct {
	RepoURL   string          `json:"repo_url"`
	Positions model.Positions `json:"positions"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// updatedAtStore is implemented by stores that track write times.
type updatedAtStore interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

func (d *Daemon) getPositions(w http.ResponseWriter, r *http.Request) {
	repoURL, err := repoURLParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := d.boards.Positions(r.Context(), repoURL)
	if err != nil {
		writeError(w, boardErrorStatus(err), err.Error())
		return
	}

	resp := positionsResponse{RepoURL: repoURL, Positions: p}
	if us, ok := d.store.(updatedAtStore); ok {
		ts, err := us.UpdatedAt(r.Context(), model.PositionsKey(repoURL))
		switch {
		case err == nil:
			resp.UpdatedAt = &ts
		case !errors.Is(err, store.ErrNotFound):
			slog.Warn("read positions timestamp", "repo", repoURL, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
