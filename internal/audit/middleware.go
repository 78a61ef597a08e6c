package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/obs"
)

// HTTPRecorder writes an audit entry for every request that passes through
// its middleware, after the handler has run.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig customises the audit entry for a route group. All fields are
// optional: an empty config derives the action from the method and matched
// route, which is how the admin surface mounts it.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
	ActorFunc       func(*http.Request) Actor
}

// Middleware returns a chi-compatible middleware that records audit entries.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)
			status := recorder.Status()

			actor := r.resolveActor(req, cfg)
			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}

			if err := r.Service.Record(req.Context(), actor, cfg.Action, cfg.ResourceType, resourceID, req, status, encodeMetadata(cfg, req, status)); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func (r HTTPRecorder) resolveActor(req *http.Request, cfg HTTPConfig) Actor {
	if cfg.ActorFunc != nil {
		return cfg.ActorFunc(req)
	}
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if req != nil {
		if userID, ok := common.UserID(req.Context()); ok && userID != "" {
			return Actor{Kind: ActorKindUser, UserID: &userID}
		}
	}
	return Actor{Kind: ActorKindAnonymous}
}

func encodeMetadata(cfg HTTPConfig, req *http.Request, status int) []byte {
	if cfg.MetadataFunc == nil {
		return nil
	}
	payload := cfg.MetadataFunc(req, status)
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
