package routes

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/workoutplan/internal/db"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
)

const (
	magicLinkTTL  = 15 * time.Minute
	oauthStateTTL = 10 * time.Minute
	afterSignIn   = "/workoutplan"
)

func text(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

// safeReturn only allows local paths as post sign-in redirects.
func safeReturn(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return afterSignIn
	}
	return p
}

func (s *Server) signInPage(r *http.Request, errMsg string) map[string]any {
	return s.page(r, "Sign in", map[string]any{
		"ProviderEnabled": s.Provider != nil,
		"ReturnTo":        safeReturn(r.URL.Query().Get("return_to")),
		"Error":           errMsg,
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := appmw.UserID(r.Context()); ok {
		http.Redirect(w, r, afterSignIn, http.StatusFound)
		return
	}
	s.render(w, r, "sign_in", s.signInPage(r, ""))
}

// startSession binds the session to the user, renewing the token first.
func (s *Server) startSession(r *http.Request, u db.User) error {
	if err := s.Sess.RenewToken(r.Context()); err != nil {
		return err
	}
	s.Sess.Put(r.Context(), sessionUserKey, u.ID.String())
	return nil
}

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderStatus(w, r, http.StatusBadRequest, "sign_in", s.signInPage(r, "bad form"))
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(r.Form.Get("email")))
	if err != nil {
		s.renderStatus(w, r, http.StatusBadRequest, "sign_in", s.signInPage(r, "a valid email is required"))
		return
	}
	emailAddr := strings.ToLower(addr.Address)

	link := s.Magic.URL(emailAddr, magicLinkTTL)
	html := "<p>Click the link below to sign in to AI Workout Plans:</p><p><a href=\"" + link + "\">Sign in</a></p>"
	if err := s.Email.Send(emailAddr, "Your sign-in link", html); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("email", emailAddr).Msg("send magic link")
		s.renderStatus(w, r, http.StatusBadGateway, "sign_in", s.signInPage(r, "could not send the sign-in email, please try again"))
		return
	}

	hlog.FromRequest(r).Info().Str("email", emailAddr).Msg("magic link sent")
	s.render(w, r, "magic_sent", s.page(r, "Check your inbox", map[string]any{
		"Email":    emailAddr,
		"ValidFor": "15 minutes",
	}))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	emailAddr, err := s.Magic.Verify(r.URL.Query().Get("token"))
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("magic link verify failed")
		s.renderStatus(w, r, http.StatusUnauthorized, "sign_in", s.signInPage(r, "that sign-in link is invalid or has expired"))
		return
	}

	u, err := s.Store.UpsertUserByEmail(r.Context(), db.UpsertUserByEmailParams{Email: strings.ToLower(emailAddr)})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("upsert user")
		http.Error(w, "could not sign in", http.StatusInternalServerError)
		return
	}
	if err := s.startSession(r, u); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("renew session")
		http.Error(w, "could not sign in", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, afterSignIn, http.StatusFound)
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.Provider == nil {
		http.NotFound(w, r)
		return
	}
	returnTo := safeReturn(r.URL.Query().Get("return_to"))
	state := s.State.Sign(returnTo, time.Now().Add(oauthStateTTL))
	http.Redirect(w, r, s.Provider.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.Provider == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		hlog.FromRequest(r).Info().Str("error", e).Str("description", q.Get("error_description")).Msg("identity provider denied sign-in")
		s.renderStatus(w, r, http.StatusUnauthorized, "sign_in", s.signInPage(r, "sign-in was cancelled"))
		return
	}

	returnTo, err := s.State.Verify(q.Get("state"))
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("oauth state rejected")
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	id, err := s.Provider.Identify(r.Context(), q.Get("code"))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("identify user")
		s.renderStatus(w, r, http.StatusBadGateway, "sign_in", s.signInPage(r, "could not sign you in, please try again"))
		return
	}

	u, err := s.Store.UpsertUserByEmail(r.Context(), db.UpsertUserByEmailParams{
		Email:           id.Email,
		Name:            text(id.Name),
		AvatarUrl:       text(id.Picture),
		ProviderSubject: text(id.Subject),
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("upsert user")
		http.Error(w, "could not sign in", http.StatusInternalServerError)
		return
	}
	if err := s.startSession(r, u); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("renew session")
		http.Error(w, "could not sign in", http.StatusInternalServerError)
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", u.ID.String()).Msg("signed in")
	http.Redirect(w, r, safeReturn(returnTo), http.StatusFound)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.Sess.Destroy(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("destroy session")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	id, _ := appmw.UserID(r.Context())
	tok, exp, err := s.Tokens.Issue(id)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("issue token")
		appmw.JSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok,
		"tokenType": "Bearer",
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}
