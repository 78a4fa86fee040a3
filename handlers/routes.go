package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"tour-server/middleware"
	"tour-server/models"
	"tour-server/utils/errors"
)

// Routes holds everything the API router needs.
type Routes struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Tours    *TourHandler
	Reviews  *ReviewHandler
	Bookings *BookingHandler
	Guard    *middleware.AuthGuard
	Limiter  *middleware.RateLimiter
}

type chainable = func(http.Handler) http.Handler

// with wraps h in mws, the first one outermost.
func with(h http.HandlerFunc, mws ...chainable) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// NotFound answers any unmatched route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	fail(w, errors.NewAPIError("NOT_FOUND", fmt.Sprintf("Can't find %s on this server!", r.URL.Path), http.StatusNotFound))
}

// NewRouter builds the /api/v1 router. Fixed paths are registered before
// the {id} routes they would otherwise collide with.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(NotFound)

	api := r.PathPrefix("/api/v1").Subrouter()
	if rt.Limiter != nil {
		api.Use(rt.Limiter.Limit)
	}
	api.Use(middleware.LimitBody)

	protect := rt.Guard.Protect
	optional := rt.Guard.OptionalAuth
	restrict := middleware.RestrictTo
	staff := restrict(models.RoleAdmin, models.RoleLeadGuide)

	// Tours
	tours := api.PathPrefix("/tours").Subrouter()
	tours.Handle("/top-5-cheap", with(rt.Tours.AliasTopTours, optional)).Methods(http.MethodGet)
	tours.HandleFunc("/tour-stats", rt.Tours.TourStats).Methods(http.MethodGet)
	tours.Handle("/monthly-plan/{year}", with(rt.Tours.MonthlyPlan, protect,
		restrict(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide))).Methods(http.MethodGet)
	tours.HandleFunc("/tours-within/{distance}/center/{latlng}/unit/{unit}", rt.Tours.ToursWithin).Methods(http.MethodGet)
	tours.HandleFunc("/distances/{latlng}/unit/{unit}", rt.Tours.Distances).Methods(http.MethodGet)
	tours.Handle("", with(rt.Tours.ListTours, optional)).Methods(http.MethodGet)
	tours.Handle("", with(rt.Tours.CreateTour, protect, staff)).Methods(http.MethodPost)
	tours.Handle("/{id}", with(rt.Tours.GetTour, optional)).Methods(http.MethodGet)
	tours.Handle("/{id}", with(rt.Tours.UpdateTour, protect, staff)).Methods(http.MethodPatch)
	tours.Handle("/{id}", with(rt.Tours.DeleteTour, protect, staff)).Methods(http.MethodDelete)
	tours.Handle("/{tourId}/reviews", with(rt.Reviews.ListReviews, protect)).Methods(http.MethodGet)
	tours.Handle("/{tourId}/reviews", with(rt.Reviews.CreateReview, protect, restrict(models.RoleUser))).Methods(http.MethodPost)

	// Reviews
	reviews := api.PathPrefix("/reviews").Subrouter()
	reviews.Use(protect)
	reviews.HandleFunc("", rt.Reviews.ListReviews).Methods(http.MethodGet)
	reviews.Handle("", with(rt.Reviews.CreateReview, restrict(models.RoleUser))).Methods(http.MethodPost)
	reviews.HandleFunc("/{id}", rt.Reviews.GetReview).Methods(http.MethodGet)
	reviews.Handle("/{id}", with(rt.Reviews.UpdateReview, restrict(models.RoleUser, models.RoleAdmin))).Methods(http.MethodPatch)
	reviews.Handle("/{id}", with(rt.Reviews.DeleteReview, restrict(models.RoleUser, models.RoleAdmin))).Methods(http.MethodDelete)

	// Users
	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/signup", rt.Auth.Signup).Methods(http.MethodPost)
	users.HandleFunc("/login", rt.Auth.Login).Methods(http.MethodPost)
	users.HandleFunc("/logout", rt.Auth.Logout).Methods(http.MethodGet)
	users.HandleFunc("/forgotPassword", rt.Auth.ForgotPassword).Methods(http.MethodPost)
	users.HandleFunc("/resetPassword/{token}", rt.Auth.ResetPassword).Methods(http.MethodPatch)
	users.Handle("/updateMyPassword", with(rt.Auth.UpdatePassword, protect)).Methods(http.MethodPatch)
	users.Handle("/me", with(rt.Users.GetMe, protect)).Methods(http.MethodGet)
	users.Handle("/updateMe", with(rt.Users.UpdateMe, protect)).Methods(http.MethodPatch)
	users.Handle("/deleteMe", with(rt.Users.DeleteMe, protect)).Methods(http.MethodDelete)
	admin := restrict(models.RoleAdmin)
	users.Handle("", with(rt.Users.ListUsers, protect, admin)).Methods(http.MethodGet)
	users.Handle("", with(rt.Users.CreateUser, protect, admin)).Methods(http.MethodPost)
	users.Handle("/{id}", with(rt.Users.GetUser, protect, admin)).Methods(http.MethodGet)
	users.Handle("/{id}", with(rt.Users.UpdateUser, protect, admin)).Methods(http.MethodPatch)
	users.Handle("/{id}", with(rt.Users.DeleteUser, protect, admin)).Methods(http.MethodDelete)

	// Bookings
	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(protect)
	bookings.HandleFunc("/my-tours", rt.Bookings.MyTours).Methods(http.MethodGet)
	bookings.Handle("", with(rt.Bookings.ListBookings, staff)).Methods(http.MethodGet)
	bookings.Handle("", with(rt.Bookings.CreateBooking, staff)).Methods(http.MethodPost)
	bookings.Handle("/{id}", with(rt.Bookings.GetBooking, staff)).Methods(http.MethodGet)
	bookings.Handle("/{id}", with(rt.Bookings.UpdateBooking, staff)).Methods(http.MethodPatch)
	bookings.Handle("/{id}", with(rt.Bookings.DeleteBooking, staff)).Methods(http.MethodDelete)

	return r
}
