package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gurkanfikretgunak/bio/internal/loader"
	"github.com/gurkanfikretgunak/bio/internal/models"
	"github.com/gurkanfikretgunak/bio/internal/platform"
)

func (s *Server) renderError(w http.ResponseWriter, status int, data models.ErrorPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmplFunc(w, "error.html", data); err != nil {
		slog.Error("Failed to render error template", "error", err)
	}
}

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.loader.State()

	switch st.Phase {
	case loader.PhaseReady:
		data := models.NewIndexPageData(st.Document, platform.Detect(r.UserAgent()), st.UpdatedAt.Format("Jan 2, 2006"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.tmplFunc(w, "index.html", data); err != nil {
			slog.Error("Failed to render index template", "error", err)
		}

	case loader.PhaseError:
		s.renderError(w, http.StatusServiceUnavailable, models.ErrorPageData{
			Title:   loader.Title(st.Kind),
			Message: st.Message,
			Code:    st.Code(),
		})

	default:
		data := models.LoadingPageData{
			Status:     st.StatusText,
			Generation: st.Generation,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.tmplFunc(w, "loading.html", data); err != nil {
			slog.Error("Failed to render loading template", "error", err)
		}
	}
}

func (s *Server) HandleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.loader.Retry(); err != nil && !errors.Is(err, loader.ErrNotRetryable) {
		slog.Error("Failed to retry bio load", "error", err)
		s.renderError(w, http.StatusServiceUnavailable, models.ErrorPageData{
			Title:   "Unavailable",
			Message: "The page is not accepting retries right now. Please try again later.",
		})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type stateResponse struct {
	Phase      string    `json:"phase"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Code       string    `json:"code,omitempty"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newStateResponse(st loader.State) stateResponse {
	return stateResponse{
		Phase:      st.Phase.String(),
		Status:     st.StatusText,
		Message:    st.Message,
		Code:       st.Code(),
		Generation: st.Generation,
		UpdatedAt:  st.UpdatedAt,
	}
}

func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.loader.State()))
}

func (s *Server) HandleBio(w http.ResponseWriter, r *http.Request) {
	st := s.loader.State()
	if st.Phase != loader.PhaseReady {
		writeJSON(w, http.StatusServiceUnavailable, newStateResponse(st))
		return
	}
	writeJSON(w, http.StatusOK, st.Document)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	token := s.getSessionFromRequest(r)
	if s.validateSession(token) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmplFunc(w, "login.html", nil); err != nil {
		slog.Error("Failed to render login template", "error", err)
	}
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")

	if !s.verifyPassword(password) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.tmplFunc(w, "login.html", map[string]string{"Error": "Invalid password"}); err != nil {
			slog.Error("Failed to render login template", "error", err)
		}
		return
	}

	token := s.createSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(sessionTTL.Seconds()),
		SameSite: http.SameSiteStrictMode,
	})

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) verifyPassword(password string) bool {
	if len(s.adminHash) == 0 || password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		slog.Error("Failed to verify password", "error", err)
	}
	return err == nil
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.getSessionFromRequest(r)
	s.deleteSession(token)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	st := s.loader.State()

	data := models.AdminPageData{
		Phase:      st.Phase.String(),
		Status:     st.StatusText,
		Message:    st.Message,
		Code:       st.Code(),
		Backend:    s.backend,
		CanPublish: s.publisher != nil,
		Generation: st.Generation,
		UpdatedAt:  st.UpdatedAt.Format(time.RFC1123),
		Flash:      r.URL.Query().Get("message"),
		Error:      r.URL.Query().Get("error"),
	}

	if st.Phase == loader.PhaseReady {
		data.Profile = &st.Document.Profile
		data.LinkCount = len(st.Document.Links)

		raw, err := json.MarshalIndent(st.Document, "", "  ")
		if err != nil {
			slog.Error("Failed to encode bio document", "error", err)
		} else {
			data.BioJSON = string(raw)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmplFunc(w, "admin.html", data); err != nil {
		slog.Error("Failed to render admin template", "error", err)
	}
}

func (s *Server) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.loader.Reset(); err != nil {
		if errors.Is(err, loader.ErrLoadInProgress) {
			http.Redirect(w, r, "/admin?error=A+load+is+already+in+progress", http.StatusSeeOther)
			return
		}
		slog.Error("Failed to reload bio", "error", err)
		http.Redirect(w, r, "/admin?error=Failed+to+reload", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/admin?message=Reload+started", http.StatusSeeOther)
}

func (s *Server) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		http.Redirect(w, r, "/admin?error=The+"+s.backend+"+backend+is+read-only", http.StatusSeeOther)
		return
	}

	value := strings.TrimSpace(r.FormValue("bio"))
	if value == "" {
		http.Redirect(w, r, "/admin?error=Bio+document+is+required", http.StatusSeeOther)
		return
	}
	if _, err := models.DecodeBioDocument([]byte(value)); err != nil {
		slog.Warn("Rejected invalid bio document", "error", err)
		http.Redirect(w, r, "/admin?error=Invalid+bio+document", http.StatusSeeOther)
		return
	}

	if err := s.publisher.Publish(r.Context(), s.key, value); err != nil {
		slog.Error("Failed to publish bio", "error", err)
		http.Redirect(w, r, "/admin?error=Failed+to+publish", http.StatusSeeOther)
		return
	}
	slog.Info("Published bio document", "key", s.key, "bytes", len(value))

	// A load in flight may still read the previous value; the admin can
	// reload again once it settles.
	if err := s.loader.Reset(); err != nil && !errors.Is(err, loader.ErrLoadInProgress) {
		slog.Error("Failed to reload bio after publish", "error", err)
	}

	http.Redirect(w, r, "/admin?message=Published", http.StatusSeeOther)
}

func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, FormatBuildVersion(s.version)+"\n")
}

func (s *Server) serveFile(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := s.assets.Open(path)
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		defer func() { _ = file.Close() }()
		_, _ = io.Copy(w, file)
	}
}

func (s *Server) cacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "public, max-age=86400")
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}
