package handlers

import (
	"net/http"
	"strconv"

	"tour-server/models"
	"tour-server/services"
	"tour-server/utils/errors"
)

type TourHandler struct {
	tours   *services.TourService
	reviews *services.ReviewService
}

func NewTourHandler(tours *services.TourService, reviews *services.ReviewService) *TourHandler {
	return &TourHandler{tours: tours, reviews: reviews}
}

func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	qf, err := queryFeatures(r.URL.Query(), services.TourFields)
	if err != nil {
		fail(w, err)
		return
	}
	tours, err := h.tours.List(r.Context(), services.TourQuery{QueryFeatures: qf, IncludeSecret: includeSecret(r)})
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "tours", tours)
}

// AliasTopTours presets the query of the five best cheap tours.
func (h *TourHandler) AliasTopTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	r.URL.RawQuery = q.Encode()
	h.ListTours(w, r)
}

// GetTour returns the tour with its reviews.
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	tour, err := h.tours.Get(r.Context(), id, includeSecret(r))
	if err != nil {
		fail(w, err)
		return
	}
	if tour.Reviews, err = h.reviews.ForTour(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "tour", tour)
}

func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var input models.TourInput
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	tour, err := h.tours.Create(r.Context(), input)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusCreated, "tour", tour)
}

func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var patch models.TourPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	tour, err := h.tours.Update(r.Context(), id, patch)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "tour", tour)
}

func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.tours.Delete(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	sendNoContent(w)
}

func (h *TourHandler) TourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "stats", stats)
}

func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(muxVar(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		fail(w, errors.BadRequest("Invalid year"))
		return
	}
	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "plan", plan)
}

func geoParams(r *http.Request) (models.GeoPoint, services.DistanceUnit, error) {
	point, err := services.ParseLatLng(muxVar(r, "latlng"))
	if err != nil {
		return point, "", errors.BadRequest("Please provide latitude and longitude in the format lat,lng.")
	}
	unit, err := services.ParseDistanceUnit(muxVar(r, "unit"))
	if err != nil {
		return point, "", errors.BadRequest(err.Error())
	}
	return point, unit, nil
}

func (h *TourHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(muxVar(r, "distance"), 64)
	if err != nil || distance <= 0 {
		fail(w, errors.BadRequest("Please provide a positive distance."))
		return
	}
	center, unit, err := geoParams(r)
	if err != nil {
		fail(w, err)
		return
	}
	tours, err := h.tours.Within(r.Context(), distance, center, unit)
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "tours", tours)
}

func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) {
	from, unit, err := geoParams(r)
	if err != nil {
		fail(w, err)
		return
	}
	distances, err := h.tours.Distances(r.Context(), from, unit)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "distances", distances)
}
