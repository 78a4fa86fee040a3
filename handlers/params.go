package handlers

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tour-server/middleware"
	"tour-server/models"
	"tour-server/services"
	"tour-server/utils/errors"
)

// secretReaders may lift the secret-tour filter with ?includeSecret=true.
var secretReaders = models.NewRoleSet(models.RoleAdmin, models.RoleLeadGuide)

// pathID parses the ObjectID in route variable name.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, errors.ErrInvalidID
	}
	return id, nil
}

// currentUser returns the user Protect attached. Routes using it are always
// behind Protect.
func currentUser(r *http.Request) (*models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, errors.ErrUnauthorized
	}
	return user, nil
}

func includeSecret(r *http.Request) bool {
	if r.URL.Query().Get("includeSecret") != "true" {
		return false
	}
	user, ok := middleware.UserFromContext(r.Context())
	return ok && secretReaders.Contains(user.Role)
}

func queryFeatures(values url.Values, allowed map[string]bool) (services.QueryFeatures, error) {
	qf, err := services.ParseQueryFeatures(values, allowed)
	if err != nil {
		return qf, errors.BadRequest(err.Error())
	}
	return qf, nil
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
