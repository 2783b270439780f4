// internal/app/features/circles/respond.go
package circles

import (
	"errors"
	"net/http"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/authz"
	"github.com/dalemusser/circlehub/internal/app/system/inputval"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type errorBody struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity
	case apperrors.KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperrors.KindOf(err)
	body := errorBody{
		Code:     apperrors.CodeOf(err),
		Metadata: apperrors.MetadataOf(err),
	}
	if kind == apperrors.KindInternal {
		h.Log.Error("circle operation failed",
			zap.String("operation", op),
			zap.String("code", string(body.Code)),
			zap.Error(err))
		body.Message = "something went wrong; please try again"
		if body.Code == apperrors.CodePartialWrite {
			body.Message = "the change was only partly saved; an administrator must reconcile it"
		}
	} else {
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			body.Message = ae.Message
		}
	}
	render.Status(r, statusFor(kind))
	render.JSON(w, r, map[string]any{"error": body})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// decode reads the JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidRequest, "request body must be valid JSON")
	}
	if res := inputval.Validate(v); res.HasErrors() {
		md := make(map[string]string, len(res.Errors))
		for _, fe := range res.Errors {
			md[fe.Field] = fe.Message
		}
		return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvalidRequest, res.First(), md)
	}
	return nil
}

func pathID(r *http.Request, param string) (primitive.ObjectID, error) {
	return parseID(chi.URLParam(r, param), param)
}

func parseID(hex, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvalidID,
			field+" is not a valid ID", map[string]string{"field": field})
	}
	return id, nil
}

// actorID returns the signed-in user's ID. Routes using it sit behind
// RequireSignedIn.
func actorID(r *http.Request) (primitive.ObjectID, error) {
	id, ok := authz.Actor(r)
	if !ok {
		return primitive.NilObjectID, apperrors.Forbidden(apperrors.CodeNotOrgAdmin, "sign in required")
	}
	return id, nil
}
