package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"growit/internal/curriculum"
	"growit/internal/engine"
	"growit/internal/engine/auth"
	"growit/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Origins  []string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_credentials"`
	Message string         `json:"message" example:"incorrect email or password"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the GrowIt API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(corsMiddleware(cfg.Origins))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("GrowIt API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerEvents(group, cfg.Engine)
	registerAuth(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerStudy(group, cfg.Engine)
	registerCurricula(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Msg, nil)
	}
	var ice auth.InvalidCredentialsError
	var iue auth.InactiveUserError
	if errors.As(err, &ice) || errors.As(err, &iue) {
		// Inactive accounts get the same answer as bad credentials so the
		// response never reveals account state.
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", auth.InvalidCredentialsError{}.Error(), nil)
	}
	if errors.Is(err, repo.ErrEmailTaken) {
		return newAPIError(http.StatusConflict, "email_taken", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, curriculum.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "collect-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Collect analytics event",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CollectEventRequest `json:"body"`
	}) (*struct {
		Body EventAcceptedResponse `json:"body"`
	}, error) {
		opts := engine.CollectEventOptions{
			EventType: input.Body.EventType,
			Metadata:  input.Body.Metadata,
		}
		if input.Body.UserID != nil {
			opts.UserID = *input.Body.UserID
		}
		if input.Body.AnonymousID != nil {
			opts.AnonymousID = *input.Body.AnonymousID
		}
		ev, err := e.CollectEvent(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventAcceptedResponse `json:"body"`
		}{Body: EventAcceptedResponse{Status: "accepted", EventID: ev.EventID}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := e.Signup(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	// Login takes form-encoded credentials, OAuth2 password-grant style,
	// with the email in the username field.
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		RawBody []byte `contentType:"application/x-www-form-urlencoded"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		form, err := url.ParseQuery(string(input.RawBody))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid form body", nil)
		}
		email := form.Get("username")
		password := form.Get("password")
		if email == "" || password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username and password are required", nil)
		}
		tok, _, err := e.Login(ctx, email, password)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{AccessToken: tok, TokenType: "bearer"}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerStudy(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "study-stats",
		Method:      http.MethodGet,
		Path:        "/study/stats",
		Summary:     "Study stats",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StudyStatsResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.StudyStats(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StudyStatsResponse `json:"body"`
		}{Body: statsResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "study-progress",
		Method:      http.MethodPost,
		Path:        "/study/progress",
		Summary:     "Report study minutes",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body StudyProgressRequest `json:"body"`
	}) (*struct {
		Body StudyStatsResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateStudyProgress(ctx, userID, input.Body.StudyMinutes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StudyStatsResponse `json:"body"`
		}{Body: statsResponse(s)}, nil
	})
}

func registerCurricula(api huma.API, e engine.Engine) {
	type langQuery struct {
		Lang string `query:"lang" default:"en"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-curricula",
		Method:      http.MethodGet,
		Path:        "/curricula",
		Summary:     "List curricula",
	}, func(ctx context.Context, input *langQuery) (*struct {
		Body struct {
			Items []CurriculumSummary `json:"items"`
		} `json:"body"`
	}, error) {
		out := &struct {
			Body struct {
				Items []CurriculumSummary `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Items = []CurriculumSummary{}
		for _, id := range e.Registry.IDs() {
			c, err := e.Registry.Curriculum(id)
			if err != nil {
				return nil, handleError(err)
			}
			out.Body.Items = append(out.Body.Items, curriculumSummary(c, input.Lang))
		}
		return out, nil
	})

	type curriculumPath struct {
		CurriculumID string `path:"curriculum_id"`
		Lang         string `query:"lang" default:"en"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-curriculum",
		Method:      http.MethodGet,
		Path:        "/curricula/{curriculum_id}",
		Summary:     "Curriculum detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *curriculumPath) (*struct {
		Body CurriculumResponse `json:"body"`
	}, error) {
		c, err := e.Registry.Curriculum(input.CurriculumID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CurriculumResponse `json:"body"`
		}{Body: curriculumResponse(c, input.Lang)}, nil
	})

	type dayPath struct {
		CurriculumID string `path:"curriculum_id"`
		Day          int    `path:"day" minimum:"1"`
		Lang         string `query:"lang" default:"en"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-day",
		Method:      http.MethodGet,
		Path:        "/curricula/{curriculum_id}/days/{day}",
		Summary:     "Day detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *dayPath) (*struct {
		Body DayResponse `json:"body"`
	}, error) {
		c, err := e.Registry.Curriculum(input.CurriculumID)
		if err != nil {
			return nil, handleError(err)
		}
		d, ok := c.Day(input.Day)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("day %d not found", input.Day), nil)
		}
		return &struct {
			Body DayResponse `json:"body"`
		}{Body: dayResponse(d, input.Lang)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/curricula/{curriculum_id}/days/{day}/mission",
		Summary:     "Mission detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *dayPath) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		m, err := e.Registry.Mission(input.CurriculumID, input.Day)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m, input.Lang)}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if publicPath(basePath, route) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>GrowIt API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}
