package handlers

import (
	stderrors "errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
	"tour-server/services"
	"tour-server/utils/errors"
)

var errUseSignup = errors.NewAPIError("NOT_DEFINED", "This route is not defined! Please use /signup instead", http.StatusInternalServerError)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func userNotFound(err error) error {
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return errors.NotFound("user")
	}
	return err
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "user", user)
}

// UpdateMe changes name, email or photo of the current user.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	var patch models.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	set, err := patch.Update()
	if err != nil {
		fail(w, err)
		return
	}
	if len(set) == 0 {
		sendData(w, http.StatusOK, "user", user)
		return
	}
	updated, err := h.userService.Update(r.Context(), user.ID, set)
	if err != nil {
		fail(w, userNotFound(err))
		return
	}
	sendData(w, http.StatusOK, "user", updated)
}

// DeleteMe deactivates the current user.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.userService.Deactivate(r.Context(), user.ID); err != nil {
		fail(w, userNotFound(err))
		return
	}
	sendNoContent(w)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	qf, err := queryFeatures(r.URL.Query(), services.UserFields)
	if err != nil {
		fail(w, err)
		return
	}
	users, err := h.userService.List(r.Context(), qf)
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "users", users)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	fail(w, errUseSignup)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		fail(w, userNotFound(err))
		return
	}
	sendData(w, http.StatusOK, "user", user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var patch models.AdminUserPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	set, err := patch.Update()
	if err != nil {
		fail(w, err)
		return
	}
	if len(set) == 0 {
		fail(w, errors.BadRequest("Nothing to update"))
		return
	}
	user, err := h.userService.Update(r.Context(), id, set)
	if err != nil {
		fail(w, userNotFound(err))
		return
	}
	sendData(w, http.StatusOK, "user", user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.userService.Delete(r.Context(), id); err != nil {
		fail(w, userNotFound(err))
		return
	}
	sendNoContent(w)
}
