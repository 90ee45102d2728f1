package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"teachcal/internal/config"
	"teachcal/internal/ics"
	appLog "teachcal/internal/log"
	"teachcal/internal/schedule"
	"teachcal/internal/store"
	"teachcal/internal/view"
)

// refreshPerMinute bounds manual reloads per client IP.
const refreshPerMinute = 6

// Server exposes the schedule view-models over HTTP.
type Server struct {
	cfg   *config.Config
	store *store.Store
	loc   *time.Location
	days  []int
}

// NewServer constructs a new Server. loc is the wall-clock zone used to
// interpret date query parameters.
func NewServer(cfg *config.Config, st *store.Store, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		cfg:   cfg,
		store: st,
		loc:   loc,
		days:  cfg.GridDays,
	}
}

// Handler returns the routed http.Handler for this server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/week", s.handleWeek)
			r.Get("/grid", s.handleGrid)
			r.Get("/schools", s.handleSchools)
			r.Get("/occurrences", s.handleOccurrences)
			r.Get("/calendar.ics", s.handleCalendar)
			r.With(httprate.LimitByIP(refreshPerMinute, time.Minute)).Post("/refresh", s.handleRefresh)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/agenda", http.StatusFound)
		})
		r.Get("/agenda", s.handleAgendaPage)
		r.Get("/grid", s.handleGridPage)
	})

	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="teachcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(started),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// readySnapshot writes 503 and returns false unless the schedule is loaded.
func (s *Server) readySnapshot(w http.ResponseWriter) (store.Snapshot, bool) {
	snap := s.store.Snapshot()
	if snap.Status == store.StatusReady {
		return snap, true
	}
	resp := unavailableResponse{Error: "agenda unavailable", Status: string(snap.Status)}
	if snap.Err != nil {
		resp.Detail = snap.Err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, resp)
	return snap, false
}

// stateFromQuery resolves the view state from ?date=YYYY-MM-DD&day=N&shift=N.
//   - date:  anchor date (default: today per the time source)
//   - shift: weeks to move the anchor by
//   - day:   weekday index to select within the anchor's week
func (s *Server) stateFromQuery(r *http.Request, now time.Time) (schedule.State, error) {
	q := r.URL.Query()

	st := schedule.NewState(now)
	if v := q.Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, now.Location())
		if err != nil {
			return schedule.State{}, errors.New("invalid date, expected YYYY-MM-DD")
		}
		anchor := schedule.SelectDay(d)
		st = schedule.State{Anchor: anchor, SelectedDay: int(anchor.Weekday())}
	}
	if v := q.Get("shift"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return schedule.State{}, errors.New("invalid shift")
		}
		st = st.Shift(n)
	}
	if v := q.Get("day"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 6 {
			return schedule.State{}, errors.New("invalid day, expected 0..6")
		}
		st = st.Select(n)
	}
	return st, nil
}

func (s *Server) now() time.Time {
	return s.store.Now().In(s.loc)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readySnapshot(w)
	if !ok {
		return
	}
	now := s.now()
	st, err := s.stateFromQuery(r, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := schedule.Build(snap.Lessons, st, now)
	writeJSON(w, http.StatusOK, newWeekResponse(v, now))
}

func (s *Server) handleGrid(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.readySnapshot(w)
	if !ok {
		return
	}
	g := schedule.BuildGrid(snap.Lessons, s.days, s.store.Slots())
	writeJSON(w, http.StatusOK, newGridResponse(g))
}

func (s *Server) handleSchools(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.readySnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schoolsResponse{Schools: schedule.Sections(snap.Lessons)})
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readySnapshot(w)
	if !ok {
		return
	}
	now := s.now()
	st, err := s.stateFromQuery(r, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	week := schedule.ComputeWeek(st.Anchor)
	res, err := ics.Expand(snap.Lessons, ics.ExpandConfig{
		RangeStart: week.Start(),
		// Expand treats the range as inclusive; stop just before next Sunday.
		RangeEnd: week.End().Add(-time.Nanosecond),
	})
	if err != nil {
		appLog.Error("api occurrences: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand lessons")
		return
	}
	writeJSON(w, http.StatusOK, newOccurrencesResponse(week, res))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readySnapshot(w)
	if !ok {
		return
	}
	now := s.now()
	out, err := ics.Export(snap.Lessons, ics.ExportConfig{
		Name:   "Agenda semanal",
		Anchor: now,
		Stamp:  snap.LoadedAt,
	})
	if err != nil {
		appLog.Error("api calendar: export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="agenda.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.store.Load(r.Context())
	switch {
	case errors.Is(err, store.ErrLoadInFlight):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, unavailableResponse{
			Error:  "agenda unavailable",
			Status: string(store.StatusFailed),
			Detail: err.Error(),
		})
		return
	}
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:   string(snap.Status),
		Lessons:  len(snap.Lessons),
		Rejected: len(snap.Rejected),
		LoadedAt: snap.LoadedAt,
	})
}

func (s *Server) handleAgendaPage(w http.ResponseWriter, r *http.Request) {
	var page view.AgendaPage

	snap := s.store.Snapshot()
	switch snap.Status {
	case store.StatusReady:
		now := s.now()
		st, err := s.stateFromQuery(r, now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		page = view.NewAgendaPage(schedule.Build(snap.Lessons, st, now), r.URL.Path)
	case store.StatusFailed:
		page.Err = snap.Err
	default:
		page.Err = errors.New("carregando")
	}

	writeHTML(w, func(buf *bytes.Buffer) error { return view.RenderAgenda(buf, page) })
}

func (s *Server) handleGridPage(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	if snap.Status != store.StatusReady {
		http.Error(w, "agenda unavailable", http.StatusServiceUnavailable)
		return
	}
	g := schedule.BuildGrid(snap.Lessons, s.days, s.store.Slots())
	writeHTML(w, func(buf *bytes.Buffer) error { return view.RenderGrid(buf, view.GridPage{Grid: g}) })
}

func writeHTML(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		appLog.Error("failed to render page", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
