package handlers

import (
	"net/http"

	"tour-server/models"
	"tour-server/services"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// ListReviews lists all reviews, or those of one tour on the nested route.
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if tourID := muxVar(r, "tourId"); tourID != "" {
		if _, err := pathID(r, "tourId"); err != nil {
			fail(w, err)
			return
		}
		values.Set("tour", tourID)
	}
	qf, err := queryFeatures(values, services.ReviewFields)
	if err != nil {
		fail(w, err)
		return
	}
	reviews, err := h.reviews.List(r.Context(), qf)
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "reviews", reviews)
}

func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	review, err := h.reviews.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "review", review)
}

// CreateReview takes the tour from the route when nested and the author
// from the signed-in user.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	var input models.ReviewInput
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	if tourID := muxVar(r, "tourId"); tourID != "" {
		input.Tour = tourID
	}
	review, err := h.reviews.Create(r.Context(), input, user.ID)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusCreated, "review", review)
}

func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var patch models.ReviewPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	review, err := h.reviews.Update(r.Context(), id, user, patch)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "review", review)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.reviews.Delete(r.Context(), id, user); err != nil {
		fail(w, err)
		return
	}
	sendNoContent(w)
}
