package server

import (
	"html/template"
	"net/http"

	"github.com/teemow/drivetransfer/internal/logging"
)

const oauthPageSource = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
  </head>
  <body style="font-family: Arial, sans-serif; padding: 40px; text-align: center;">
    <h2 style="color: {{.Color}};">{{.Title}}</h2>
    {{- if .Success}}
    <p>You are now signed in as: <strong>{{.Email}}</strong></p>
    <p>You can close this window and return to the application.</p>
    {{- else}}
    <p>{{.Message}}</p>
    {{- end}}
    <button onclick="window.close()" style="padding: 10px 20px; background: #4285f4; color: white; border: none; border-radius: 5px; cursor: pointer;">
      Close Window
    </button>
    {{- if .Success}}
    <script>
      setTimeout(() => { window.close(); }, 2000);
    </script>
    {{- end}}
  </body>
</html>
`

const (
	oauthColorSuccess = "#34a853"
	oauthColorFailure = "#ea4335"
)

var oauthPage = template.Must(template.New("oauth").Parse(oauthPageSource))

type oauthPageData struct {
	Title     string
	Color     template.CSS
	Email     string
	Message   string
	Success   bool
}

// handleOAuthRedirect completes sign-in when Google redirects the browser
// back with an authorization code.
func (a *App) handleOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		a.renderOAuthPage(w, r, oauthPageData{
			Title:   "❌ OAuth Error",
			Color:   oauthColorFailure,
			Message: "No authorization code received.",
		})
		return
	}

	email, err := a.auth.CompleteAuthorization(r.Context(), code)
	if err != nil {
		a.renderOAuthPage(w, r, oauthPageData{
			Title:   "❌ Authentication Failed",
			Color:   oauthColorFailure,
			Message: authFailureMessage(err),
		})
		return
	}

	a.renderOAuthPage(w, r, oauthPageData{
		Title:     "✅ Authentication Successful!",
		Color:     oauthColorSuccess,
		Email:     email,
		Success:   true,
	})
}

func (a *App) renderOAuthPage(w http.ResponseWriter, r *http.Request, data oauthPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := oauthPage.Execute(w, data); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to render oauth page", logging.Err(err))
	}
}
