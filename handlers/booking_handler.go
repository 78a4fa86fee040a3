package handlers

import (
	"net/http"

	"tour-server/models"
	"tour-server/services"
)

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// MyTours lists the tours the signed-in user has booked.
func (h *BookingHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	tours, err := h.bookings.MyTours(r.Context(), user.ID)
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "tours", tours)
}

func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	qf, err := queryFeatures(r.URL.Query(), services.BookingFields)
	if err != nil {
		fail(w, err)
		return
	}
	bookings, err := h.bookings.List(r.Context(), qf)
	if err != nil {
		fail(w, err)
		return
	}
	sendList(w, "bookings", bookings)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	booking, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "booking", booking)
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var input models.BookingInput
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	booking, err := h.bookings.Create(r.Context(), input)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusCreated, "booking", booking)
}

func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var patch models.BookingPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	booking, err := h.bookings.Update(r.Context(), id, patch)
	if err != nil {
		fail(w, err)
		return
	}
	sendData(w, http.StatusOK, "booking", booking)
}

func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := h.bookings.Delete(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	sendNoContent(w)
}
