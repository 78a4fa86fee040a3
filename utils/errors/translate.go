package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
)

// Translate maps any error returned by a service to the APIError sent to
// the client. Unknown errors become a 500 carrying the original text in
// Details.
func Translate(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return NewAPIError("VALIDATION_ERROR", "Invalid input data. "+strings.Join(msgs, ". "), http.StatusBadRequest)
	}

	var ferr *models.FieldError
	if stderrors.As(err, &ferr) {
		return NewAPIError("VALIDATION_ERROR", "Invalid input data. "+ferr.Message, http.StatusBadRequest)
	}

	switch {
	case mongo.IsDuplicateKeyError(err):
		return NewAPIError("DUPLICATE_FIELD", "Duplicate field value. Please use another value!", http.StatusBadRequest, err.Error())
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case stderrors.Is(err, primitive.ErrInvalidHex):
		return ErrInvalidID
	}

	return NewAPIError(ErrInternal.Code, ErrInternal.Message, http.StatusInternalServerError, err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s is either: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "eqfield":
		return "Passwords are not the same!"
	case "mongodb":
		return fmt.Sprintf("%s must be a valid id", field)
	case "len":
		return fmt.Sprintf("%s must have exactly %s elements", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}
