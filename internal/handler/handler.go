// Package handler содержит HTTP-обработчики API сервиса заказов кафе.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
	"github.com/mmeshcher/cafe-order-system/internal/model"
)

// MemberService определяет контракт операций с участниками,
// используемый HTTP-обработчиками.
type MemberService interface {
	Signup(ctx context.Context, name, phoneNumber string, gender model.Gender, birthDate time.Time) (*model.Member, error)
	Withdraw(ctx context.Context, memberID int64) error
	CancelWithdrawal(ctx context.Context, memberID int64) error
}

// OrderService определяет контракт операций с заказами,
// используемый HTTP-обработчиками.
type OrderService interface {
	CreateOrder(ctx context.Context, memberID int64, lines []model.OrderLine) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API сервиса заказов кафе.
type Handler struct {
	members MemberService
	orders  OrderService
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(members MemberService, orders OrderService, logger *zap.Logger) *Handler {
	return &Handler{
		members: members,
		orders:  orders,
		logger:  logger,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError преобразует бизнес-ошибку в HTTP-статус и JSON-тело с парой
// (код, сообщение). Неклассифицированные ошибки сворачиваются в E001,
// внутренние детали наружу не выводятся.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)

	var status int
	switch appErr.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindExpired:
		status = http.StatusGone
	case apperr.KindPaymentFailed:
		status = http.StatusPaymentRequired
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("internal error", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

type signupRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birthDate"`
}

type memberResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birthDate"`
	Status      string `json:"status"`
	JoinTime    string `json:"joinTime"`
}

// Signup обрабатывает регистрацию нового участника.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		h.writeError(w, apperr.Validation("birth date must be in YYYY-MM-DD format"))
		return
	}

	member, err := h.members.Signup(r.Context(), req.Name, req.PhoneNumber, model.Gender(req.Gender), birthDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := memberResponse{
		ID:          member.ID,
		Name:        member.Name,
		PhoneNumber: member.PhoneNumber,
		Gender:      string(member.Gender),
		BirthDate:   member.BirthDate.Format("2006-01-02"),
		Status:      string(member.Status),
		JoinTime:    member.JoinTime.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode signup response", zap.Error(err))
	}
}

type memberIDRequest struct {
	MemberID int64 `json:"memberId"`
}

// Withdraw обрабатывает выход участника из членства.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req memberIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.members.Withdraw(r.Context(), req.MemberID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CancelWithdrawal обрабатывает отзыв выхода из членства.
func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req memberIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.members.CancelWithdrawal(r.Context(), req.MemberID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type orderLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	MemberID   int64              `json:"memberId"`
	OrderLines []orderLineRequest `json:"orderLines"`
}

type orderLineResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type orderResponse struct {
	ID         int64               `json:"id"`
	MemberID   int64               `json:"memberId"`
	Status     string              `json:"status"`
	PaymentID  string              `json:"paymentId"`
	OrderTime  string              `json:"orderTime"`
	CancelTime *string             `json:"cancelTime,omitempty"`
	OrderLines []orderLineResponse `json:"orderLines"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		MemberID:  o.MemberID,
		Status:    string(o.Status),
		PaymentID: o.PaymentID,
		OrderTime: o.OrderTime.Format(time.RFC3339),
	}

	if o.CancelTime != nil {
		formatted := o.CancelTime.Format(time.RFC3339)
		resp.CancelTime = &formatted
	}

	resp.OrderLines = make([]orderLineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		resp.OrderLines = append(resp.OrderLines, orderLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	return resp
}

// CreateOrder обрабатывает оформление заказа.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	lines := make([]model.OrderLine, 0, len(req.OrderLines))
	for _, line := range req.OrderLines {
		lines = append(lines, model.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), req.MemberID, lines)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toOrderResponse(order)); err != nil {
		h.logger.Error("encode order response", zap.Error(err))
	}
}

type cancelOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

// CancelOrder обрабатывает отмену заказа с возвратом платежа.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.orders.CancelOrder(r.Context(), req.OrderID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		h.writeError(w, apperr.Validation("order id must be an integer"))
		return
	}

	order, err := h.orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toOrderResponse(order)); err != nil {
		h.logger.Error("encode order response", zap.Error(err))
	}
}
