package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log     *slog.Logger
	version string
	checks  map[string]Pinger
	timeout time.Duration
}

// New создает Handler. nil-зависимости в checks пропускаются.
func New(log *slog.Logger, version string, checks map[string]Pinger) *Handler {
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}
	return &Handler{
		log:     log,
		version: version,
		checks:  live,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.log.Error("dependency is unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			deps[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	response.JSON(w, r, code, response.StatusOKWithData(map[string]any{
		"status":       status,
		"version":      h.version,
		"dependencies": deps,
	}))
}
