package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
	"github.com/mmeshcher/cafe-order-system/internal/model"
)

type stubMemberService struct {
	member             *model.Member
	signupErr          error
	withdrawErr        error
	cancelWithdrawErr  error
	lastWithdrawID     int64
	lastCancelMemberID int64
}

func (s *stubMemberService) Signup(ctx context.Context, name, phoneNumber string, gender model.Gender, birthDate time.Time) (*model.Member, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return s.member, nil
}

func (s *stubMemberService) Withdraw(ctx context.Context, memberID int64) error {
	s.lastWithdrawID = memberID
	return s.withdrawErr
}

func (s *stubMemberService) CancelWithdrawal(ctx context.Context, memberID int64) error {
	s.lastCancelMemberID = memberID
	return s.cancelWithdrawErr
}

type stubOrderService struct {
	order       *model.Order
	createErr   error
	cancelErr   error
	getErr      error
	lastOrderID int64
}

func (s *stubOrderService) CreateOrder(ctx context.Context, memberID int64, lines []model.OrderLine) (*model.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.order, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, orderID int64) error {
	s.lastOrderID = orderID
	return s.cancelErr
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error) {
	s.lastOrderID = orderID
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func newTestHandler(members *stubMemberService, orders *stubOrderService) *Handler {
	return NewHandler(members, orders, zap.NewNop())
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(w, req)
	return w
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v, body = %s", err, w.Body.String())
	}
	return resp
}

func TestSignup_Created(t *testing.T) {
	birthDate := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	members := &stubMemberService{member: &model.Member{
		ID:          1,
		Name:        "김철수",
		PhoneNumber: "01012345678",
		Gender:      model.GenderMale,
		BirthDate:   birthDate,
		Status:      model.MemberStatusActive,
		JoinTime:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	h := newTestHandler(members, &stubOrderService{})

	body := `{"name":"김철수","phoneNumber":"010-1234-5678","gender":"MALE","birthDate":"1990-01-01"}`
	w := doRequest(t, h, http.MethodPost, "/api/members/signup", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body = %s", w.Code, w.Body.String())
	}

	var resp memberResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 || resp.Status != "ACTIVE" || resp.BirthDate != "1990-01-01" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSignup_BadBirthDateFormat(t *testing.T) {
	h := newTestHandler(&stubMemberService{}, &stubOrderService{})

	body := `{"name":"김철수","phoneNumber":"010-1234-5678","gender":"MALE","birthDate":"01-01-1990"}`
	w := doRequest(t, h, http.MethodPost, "/api/members/signup", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != "E002" {
		t.Fatalf("code = %s, want E002", resp.Code)
	}
}

func TestSignup_InvalidJSON(t *testing.T) {
	h := newTestHandler(&stubMemberService{}, &stubOrderService{})

	w := doRequest(t, h, http.MethodPost, "/api/members/signup", `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "validation", err: apperr.Validation("bad input"), wantStatus: http.StatusBadRequest, wantCode: "E002"},
		{name: "member not found", err: apperr.ErrMemberNotFound, wantStatus: http.StatusNotFound, wantCode: "M001"},
		{name: "phone exists", err: apperr.ErrPhoneExists, wantStatus: http.StatusConflict, wantCode: "M006"},
		{name: "member withdrawn", err: apperr.ErrMemberWithdrawn, wantStatus: http.StatusConflict, wantCode: "M002"},
		{name: "withdrawal expired", err: apperr.ErrWithdrawalExpired, wantStatus: http.StatusGone, wantCode: "M005"},
		{name: "payment failed", err: apperr.ErrPaymentFailed, wantStatus: http.StatusPaymentRequired, wantCode: "PAY001"},
		{name: "unclassified", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError, wantCode: "E001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := &stubMemberService{withdrawErr: tt.err}
			h := newTestHandler(members, &stubOrderService{})

			w := doRequest(t, h, http.MethodPatch, "/api/members/withdraw", `{"memberId":1}`)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeErrorResponse(t, w)
			if resp.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestWithdraw_OK(t *testing.T) {
	members := &stubMemberService{}
	h := newTestHandler(members, &stubOrderService{})

	w := doRequest(t, h, http.MethodPatch, "/api/members/withdraw", `{"memberId":7}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if members.lastWithdrawID != 7 {
		t.Fatalf("memberID = %d, want 7", members.lastWithdrawID)
	}
}

func TestCancelWithdrawal_Expired(t *testing.T) {
	members := &stubMemberService{cancelWithdrawErr: apperr.ErrWithdrawalExpired}
	h := newTestHandler(members, &stubOrderService{})

	w := doRequest(t, h, http.MethodPatch, "/api/members/cancel-withdrawal", `{"memberId":7}`)

	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	orders := &stubOrderService{order: &model.Order{
		ID:        10,
		MemberID:  1,
		Status:    model.OrderStatusConfirmed,
		PaymentID: "pay-1",
		OrderTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Lines: []model.OrderLine{
			{ProductID: 100, Quantity: 1},
			{ProductID: 101, Quantity: 2},
		},
	}}
	h := newTestHandler(&stubMemberService{}, orders)

	body := `{"memberId":1,"orderLines":[{"productId":100,"quantity":1},{"productId":101,"quantity":2}]}`
	w := doRequest(t, h, http.MethodPost, "/api/orders/", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body = %s", w.Code, w.Body.String())
	}

	var resp orderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 10 || resp.Status != "CONFIRMED" || resp.PaymentID != "pay-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.CancelTime != nil {
		t.Fatalf("cancelTime must be omitted for confirmed order")
	}
	if len(resp.OrderLines) != 2 {
		t.Fatalf("orderLines = %d, want 2", len(resp.OrderLines))
	}
}

func TestCreateOrder_PaymentFailed(t *testing.T) {
	orders := &stubOrderService{createErr: apperr.ErrPaymentFailed}
	h := newTestHandler(&stubMemberService{}, orders)

	body := `{"memberId":1,"orderLines":[{"productId":100,"quantity":1}]}`
	w := doRequest(t, h, http.MethodPost, "/api/orders/", body)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != "PAY001" {
		t.Fatalf("code = %s, want PAY001", resp.Code)
	}
}

func TestCancelOrder_OK(t *testing.T) {
	orders := &stubOrderService{}
	h := newTestHandler(&stubMemberService{}, orders)

	w := doRequest(t, h, http.MethodPatch, "/api/orders/cancel", `{"orderId":10}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if orders.lastOrderID != 10 {
		t.Fatalf("orderID = %d, want 10", orders.lastOrderID)
	}
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	orders := &stubOrderService{cancelErr: apperr.ErrOrderCancelled}
	h := newTestHandler(&stubMemberService{}, orders)

	w := doRequest(t, h, http.MethodPatch, "/api/orders/cancel", `{"orderId":10}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != "O002" {
		t.Fatalf("code = %s, want O002", resp.Code)
	}
}

func TestGetOrder_OK(t *testing.T) {
	cancelTime := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	orders := &stubOrderService{order: &model.Order{
		ID:         10,
		MemberID:   1,
		Status:     model.OrderStatusCancelled,
		PaymentID:  "pay-1",
		OrderTime:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		CancelTime: &cancelTime,
	}}
	h := newTestHandler(&stubMemberService{}, orders)

	w := doRequest(t, h, http.MethodGet, "/api/orders/10", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp orderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "CANCELLED" {
		t.Fatalf("status = %s, want CANCELLED", resp.Status)
	}
	if resp.CancelTime == nil || !strings.HasPrefix(*resp.CancelTime, "2024-05-02") {
		t.Fatalf("unexpected cancelTime: %v", resp.CancelTime)
	}
	if orders.lastOrderID != 10 {
		t.Fatalf("orderID = %d, want 10", orders.lastOrderID)
	}
}

func TestGetOrder_BadID(t *testing.T) {
	h := newTestHandler(&stubMemberService{}, &stubOrderService{})

	w := doRequest(t, h, http.MethodGet, "/api/orders/abc", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	orders := &stubOrderService{getErr: apperr.ErrOrderNotFound}
	h := newTestHandler(&stubMemberService{}, orders)

	w := doRequest(t, h, http.MethodGet, "/api/orders/99", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	resp := decodeErrorResponse(t, w)
	if resp.Code != "O001" {
		t.Fatalf("code = %s, want O001", resp.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestHandler(&stubMemberService{}, &stubOrderService{})

	w := doRequest(t, h, http.MethodGet, "/api/unknown", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&stubMemberService{}, &stubOrderService{})

	w := doRequest(t, h, http.MethodGet, "/api/members/signup", "")

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
