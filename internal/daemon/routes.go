package daemon

import "net/http"

// registerRoutes sets up all API routes on a new ServeMux and returns it.
func (d *Daemon) registerRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health)

	// Register /boards/move before any /boards/{...} pattern would shadow it.
	mux.HandleFunc("POST /boards/move", d.moveIssue)
	mux.HandleFunc("POST /boards", d.loadBoard)
	mux.HandleFunc("GET /boards", d.getBoard)

	mux.HandleFunc("GET /positions", d.getPositions)

	return mux
}
