package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barthig/Biblioteka-sub002/internal/auth"
	"github.com/barthig/Biblioteka-sub002/internal/fines"
	"github.com/barthig/Biblioteka-sub002/internal/inventory"
	"github.com/barthig/Biblioteka-sub002/internal/loans"
	"github.com/barthig/Biblioteka-sub002/internal/notifications"
	"github.com/barthig/Biblioteka-sub002/internal/reservations"
	"github.com/barthig/Biblioteka-sub002/internal/users"
	pkgAuth "github.com/barthig/Biblioteka-sub002/pkg/auth"
	"github.com/barthig/Biblioteka-sub002/pkg/auth/session"
	"github.com/barthig/Biblioteka-sub002/pkg/config"
	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{}, nil
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return &auth.RefreshResponse{}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessToken string) error {
	return nil
}

type stubUsersService struct{}

func (stubUsersService) Register(ctx context.Context, input users.RegisterUserInput) (*models.User, error) {
	return &models.User{}, nil
}

func (stubUsersService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (stubUsersService) GetByCardNumber(ctx context.Context, cardNumber string) (*models.User, error) {
	return &models.User{}, nil
}

func (stubUsersService) UpdateProfile(ctx context.Context, input users.UpdateProfileInput) (*models.User, error) {
	return &models.User{ID: input.UserID}, nil
}

func (stubUsersService) SetBlocked(ctx context.Context, input users.SetBlockedInput) (*models.User, error) {
	return &models.User{ID: input.UserID}, nil
}

func (stubUsersService) SetLoanLimit(ctx context.Context, input users.SetLoanLimitInput) (*models.User, error) {
	return &models.User{ID: input.UserID}, nil
}

type stubInventoryService struct{}

func (stubInventoryService) CreateBook(ctx context.Context, input inventory.CreateBookInput) (*models.Book, error) {
	return &models.Book{}, nil
}

func (stubInventoryService) UpdateBook(ctx context.Context, input inventory.UpdateBookInput) (*models.Book, error) {
	return &models.Book{ID: input.BookID}, nil
}

func (stubInventoryService) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return &models.Book{ID: id}, nil
}

func (stubInventoryService) ListBooks(ctx context.Context, params pagination.Params, filters inventory.BookFilters) (*inventory.BookList, error) {
	return &inventory.BookList{}, nil
}

func (stubInventoryService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubInventoryService) CreateCopy(ctx context.Context, input inventory.CreateCopyInput) (*models.BookCopy, error) {
	return &models.BookCopy{}, nil
}

func (stubInventoryService) UpdateCopy(ctx context.Context, input inventory.UpdateCopyInput) (*models.BookCopy, error) {
	return &models.BookCopy{ID: input.CopyID}, nil
}

func (stubInventoryService) DeleteCopy(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubInventoryService) ListCopies(ctx context.Context, bookID uuid.UUID) ([]inventory.CopySummary, error) {
	return nil, nil
}

func (stubInventoryService) ImportCopies(ctx context.Context, input inventory.ImportCopiesInput) (*inventory.ImportCopiesResult, error) {
	return &inventory.ImportCopiesResult{}, nil
}

func (stubInventoryService) WithdrawCopy(ctx context.Context, input inventory.WithdrawCopyInput) error {
	return nil
}

func (stubInventoryService) ListWeedingRecords(ctx context.Context, bookID uuid.UUID) ([]models.WeedingRecord, error) {
	return nil, nil
}

type stubLoansService struct{}

func (stubLoansService) Create(ctx context.Context, input loans.CreateLoanInput) (*models.Loan, error) {
	return &models.Loan{UserID: input.UserID}, nil
}

func (stubLoansService) PickUp(ctx context.Context, input loans.PickUpInput) (*models.Loan, error) {
	return &models.Loan{}, nil
}

func (stubLoansService) Return(ctx context.Context, input loans.ReturnLoanInput) (*loans.ReturnResult, error) {
	return &loans.ReturnResult{LoanID: input.LoanID}, nil
}

func (stubLoansService) Extend(ctx context.Context, input loans.ExtendLoanInput) (*models.Loan, error) {
	return &models.Loan{ID: input.LoanID, UserID: input.ActorUserID}, nil
}

func (stubLoansService) Delete(ctx context.Context, loanID uuid.UUID) error {
	return nil
}

func (stubLoansService) Get(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	return &models.Loan{ID: loanID}, nil
}

func (stubLoansService) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*loans.LoanList, error) {
	return &loans.LoanList{}, nil
}

func (stubLoansService) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Loan, error) {
	return nil, nil
}

func (stubLoansService) ListDueSoon(ctx context.Context, now time.Time, leadDays, limit int) ([]models.Loan, error) {
	return nil, nil
}

type stubReservationsService struct{}

func (stubReservationsService) Create(ctx context.Context, input reservations.CreateReservationInput) (*models.Reservation, error) {
	return &models.Reservation{UserID: input.UserID}, nil
}

func (stubReservationsService) Cancel(ctx context.Context, input reservations.CancelReservationInput) error {
	return nil
}

func (stubReservationsService) Prepare(ctx context.Context, input reservations.PrepareReservationInput) error {
	return nil
}

func (stubReservationsService) Fulfill(ctx context.Context, reservationID, actorUserID uuid.UUID, actorRole string) error {
	return nil
}

func (stubReservationsService) Expire(ctx context.Context, reservationID uuid.UUID) error {
	return nil
}

func (stubReservationsService) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	return 0, nil
}

func (stubReservationsService) Get(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	return &models.Reservation{ID: reservationID}, nil
}

func (stubReservationsService) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*reservations.ReservationList, error) {
	return &reservations.ReservationList{}, nil
}

func (stubReservationsService) ListQueue(ctx context.Context, bookID uuid.UUID) ([]reservations.ReservationSummary, error) {
	return nil, nil
}

type stubFinesService struct{}

func (stubFinesService) Issue(ctx context.Context, input fines.IssueFineInput) (*models.Fine, error) {
	return &models.Fine{LoanID: input.LoanID, Amount: input.Amount}, nil
}

func (stubFinesService) Pay(ctx context.Context, input fines.PayFineInput) (*models.Fine, error) {
	return &models.Fine{ID: input.FineID}, nil
}

func (stubFinesService) Cancel(ctx context.Context, input fines.CancelFineInput) (*models.Fine, error) {
	return &models.Fine{ID: input.FineID}, nil
}

func (stubFinesService) Get(ctx context.Context, fineID uuid.UUID) (*models.Fine, error) {
	return &models.Fine{ID: fineID}, nil
}

func (stubFinesService) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*fines.FineList, error) {
	return &fines.FineList{}, nil
}

func (stubFinesService) OutstandingByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (stubFinesService) SweepOverdue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	return 0, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
			RefreshTokenDays:  7,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             stubPinger{},
		Redis:          nil,
		SessionChecker: stubSessionChecker{},
		Auth:           stubAuthService{},
		Users:          stubUsersService{},
		Inventory:      stubInventoryService{},
		Loans:          stubLoansService{},
		Reservations:   stubReservationsService{},
		Fines:          stubFinesService{},
		Notifications:  stubNotificationsService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	return buildTokenWithUserID(t, cfg, role, uuid.New())
}

func buildTokenWithUserID(t *testing.T, cfg *config.Config, role enums.UserRole, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/books", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public catalog got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatron))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestStaffGroupRequiresStaffRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	patron := httptest.NewRequest(http.MethodGet, "/api/v1/staff/ping", nil)
	patron.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatron))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, patron)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patron got %d", resp.Code)
	}

	librarian := httptest.NewRequest(http.MethodGet, "/api/v1/staff/ping", nil)
	librarian.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleLibrarian))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, librarian)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for librarian got %d", resp.Code)
	}
}

func TestStaffLoanDeskRejectsPatron(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/loans/overdue", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatron))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patron at loan desk got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	userID := uuid.New()

	librarian := httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/"+userID.String()+"/loan-limit", nil)
	librarian.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleLibrarian))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, librarian)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for librarian on admin route got %d", resp.Code)
	}
}

func TestPatronCanReadOwnProfile(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRolePatron))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for own profile got %d", resp.Code)
	}
}
