package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barthig/Biblioteka-sub002/api/controllers"
	"github.com/barthig/Biblioteka-sub002/api/middleware"
	"github.com/barthig/Biblioteka-sub002/internal/auth"
	"github.com/barthig/Biblioteka-sub002/internal/fines"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	"github.com/barthig/Biblioteka-sub002/internal/loans"
	"github.com/barthig/Biblioteka-sub002/internal/notifications"
	"github.com/barthig/Biblioteka-sub002/internal/reservations"
	"github.com/barthig/Biblioteka-sub002/internal/users"
	"github.com/barthig/Biblioteka-sub002/pkg/auth/session"
	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/redis"
)

// Deps bundles everything the HTTP layer needs. Optional services may be nil;
// their endpoints then answer with an internal error.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionChecker session.AccessSessionChecker

	Auth          auth.Service
	Users         users.Service
	Inventory     inventory.Service
	Loans         loans.Service
	Reservations  reservations.Service
	Fines         fines.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/books", controllers.ListBooks(deps.Inventory, logg))
		r.Get("/v1/books/{bookId}", controllers.GetBook(deps.Inventory, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.Register(deps.Users, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/me", func(r chi.Router) {
			r.Get("/", controllers.GetMe(deps.Users, logg))
			r.Patch("/", controllers.UpdateMyProfile(deps.Users, logg))
			r.Get("/loans", controllers.ListMyLoans(deps.Loans, logg))
			r.Get("/reservations", controllers.ListMyReservations(deps.Reservations, logg))
			r.Get("/fines", controllers.ListMyFines(deps.Fines, logg))
		})

		r.Route("/v1/books", func(r chi.Router) {
			r.Get("/", controllers.ListBooks(deps.Inventory, logg))
			r.Get("/{bookId}", controllers.GetBook(deps.Inventory, logg))
			r.Get("/{bookId}/copies", controllers.ListCopies(deps.Inventory, logg))
		})

		r.Route("/v1/loans", func(r chi.Router) {
			r.Get("/{loanId}", controllers.GetLoan(deps.Loans, logg))
			r.Post("/{loanId}/extend", controllers.ExtendLoan(deps.Loans, logg))
		})

		r.Route("/v1/reservations", func(r chi.Router) {
			r.Post("/", controllers.CreateReservation(deps.Reservations, logg))
			r.Get("/{reservationId}", controllers.GetReservation(deps.Reservations, logg))
			r.Post("/{reservationId}/cancel", controllers.CancelReservation(deps.Reservations, logg))
		})

		r.Route("/v1/fines", func(r chi.Router) {
			r.Get("/{fineId}", controllers.GetFine(deps.Fines, logg))
			r.Post("/{fineId}/pay", controllers.PayFine(deps.Fines, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/v1/staff", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Get("/ping", controllers.StaffPing())

			r.Route("/books", func(r chi.Router) {
				r.Post("/", controllers.CreateBook(deps.Inventory, logg))
				r.Patch("/{bookId}", controllers.UpdateBook(deps.Inventory, logg))
				r.Delete("/{bookId}", controllers.DeleteBook(deps.Inventory, logg))
				r.Get("/{bookId}/weeding-records", controllers.ListWeedingRecords(deps.Inventory, logg))
				r.Get("/{bookId}/reservations", controllers.ListReservationQueue(deps.Reservations, logg))
			})

			r.Route("/copies", func(r chi.Router) {
				r.Post("/", controllers.CreateCopy(deps.Inventory, logg))
				r.Patch("/{copyId}", controllers.UpdateCopy(deps.Inventory, logg))
				r.Delete("/{copyId}", controllers.DeleteCopy(deps.Inventory, logg))
				r.Post("/import", controllers.ImportCopies(deps.Inventory, logg))
				r.Post("/{copyId}/withdraw", controllers.WithdrawCopy(deps.Inventory, logg))
			})

			r.Route("/loans", func(r chi.Router) {
				r.Post("/", controllers.CreateLoan(deps.Loans, logg))
				r.Post("/{loanId}/return", controllers.ReturnLoan(deps.Loans, logg))
				r.Delete("/{loanId}", controllers.DeleteLoan(deps.Loans, logg))
				r.Get("/overdue", controllers.ListOverdueLoans(deps.Loans, logg))
			})

			r.Route("/reservations", func(r chi.Router) {
				r.Post("/{reservationId}/prepare", controllers.PrepareReservation(deps.Reservations, logg))
				r.Post("/{reservationId}/pickup", controllers.PickUpLoan(deps.Loans, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/lookup", controllers.GetUserByCard(deps.Users, logg))
				r.Get("/{userId}", controllers.GetUser(deps.Users, logg))
				r.Get("/{userId}/loans", controllers.ListUserLoans(deps.Loans, logg))
				r.Get("/{userId}/reservations", controllers.ListUserReservations(deps.Reservations, logg))
				r.Get("/{userId}/fines", controllers.ListUserFines(deps.Fines, logg))
				r.Put("/{userId}/blocked", controllers.SetUserBlocked(deps.Users, logg))
			})

			r.Route("/fines", func(r chi.Router) {
				r.Post("/", controllers.IssueFine(deps.Fines, logg))
				r.Post("/{fineId}/cancel", controllers.CancelFine(deps.Fines, logg))
			})
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Post("/users", controllers.CreateStaffUser(deps.Users, logg))
			r.Put("/users/{userId}/loan-limit", controllers.SetUserLoanLimit(deps.Users, logg))
		})
	})

	return r
}
