package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Lookup(ctx context.Context, code string) (*models.Coupon, bool, error) {
	args := m.Called(ctx, code)
	c, _ := args.Get(0).(*models.Coupon)
	return c, args.Bool(1), args.Error(2)
}

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		name           string
		code           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
		wantCookie     string
		wantCleared    bool
	}{
		{
			name: "пригодный купон",
			code: "PROMO",
			setupMock: func(m *MockService) {
				m.On("Lookup", mock.Anything, "PROMO").Return(&models.Coupon{Code: "PROMO", TotalCount: 2}, true, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"code":"PROMO","usable":true}`,
			wantCookie:     "PROMO",
		},
		{
			name: "исчерпанный купон",
			code: "SPENT",
			setupMock: func(m *MockService) {
				m.On("Lookup", mock.Anything, "SPENT").Return(&models.Coupon{Code: "SPENT", TotalCount: 1, UsedCount: 1}, false, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"code":"SPENT","usable":false}`,
			wantCleared:    true,
		},
		{
			name: "неизвестный купон",
			code: "NOPE",
			setupMock: func(m *MockService) {
				m.On("Lookup", mock.Anything, "NOPE").Return(nil, false, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"usable":false`,
			wantCleared:    true,
		},
		{
			name:           "слишком длинный код",
			code:           "ABCDEFGHIJK",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid coupon code`,
		},
		{
			name: "ошибка сервиса",
			code: "PROMO",
			setupMock: func(m *MockService) {
				m.On("Lookup", mock.Anything, "PROMO").Return(nil, false, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not check coupon`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/coupons/"+tt.code, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("code", tt.code)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)

			cookies := w.Result().Cookies()
			switch {
			case tt.wantCookie != "":
				require.Len(t, cookies, 1)
				assert.Equal(t, tt.wantCookie, cookies[0].Value)
			case tt.wantCleared:
				require.Len(t, cookies, 1)
				assert.Equal(t, -1, cookies[0].MaxAge)
			}
		})
	}
}
