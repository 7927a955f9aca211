package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mmeshcher/cafe-order-system/internal/apperr"
	"github.com/mmeshcher/cafe-order-system/internal/model"
	"github.com/mmeshcher/cafe-order-system/internal/repository"
)

// OrderRepository описывает контракт доступа к данным, используемый
// процессом оформления и отмены заказов.
type OrderRepository interface {
	GetMemberByID(ctx context.Context, id int64) (*model.Member, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	MarkOrderCancelled(ctx context.Context, orderID int64, cancelTime time.Time) error
	CreatePayment(ctx context.Context, paymentID string, paymentTime time.Time) (int64, error)
	LinkPaymentToOrder(ctx context.Context, paymentID string, orderID int64) error
	GetPaymentByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error)
}

// PaymentGateway описывает контракт платёжного шлюза: списание возвращает
// внешний идентификатор платежа, отмена обращает ранее выполненное списание.
type PaymentGateway interface {
	Charge(ctx context.Context) (string, error)
	Cancel(ctx context.Context, paymentID string) error
}

// OrderService координирует оформление заказа: проверку участника и товаров,
// оплату и сохранение — и отмену с компенсирующим возвратом платежа.
//
// Порядок шагов фиксирован: проверки предшествуют любым побочным эффектам,
// оплата предшествует сохранению заказа, возврат платежа предшествует
// переводу заказа в CANCELLED.
type OrderService struct {
	repo    OrderRepository
	gateway PaymentGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrderService создаёт сервис заказов с указанными репозиторием и платёжным шлюзом.
func NewOrderService(repo OrderRepository, gateway PaymentGateway, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateOrder оформляет заказ участника. Заказ сохраняется только после
// успешного списания; при отказе или таймауте шлюза ни одна строка заказа
// не создаётся.
func (s *OrderService) CreateOrder(ctx context.Context, memberID int64, lines []model.OrderLine) (*model.Order, error) {
	member, err := s.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive")
		}
	}

	productIDs := lo.Uniq(lo.Map(lines, func(line model.OrderLine, _ int) int64 {
		return line.ProductID
	}))

	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	// Частичная доступность не допускается: заказ или целиком, или никак.
	if len(products) != len(productIDs) {
		s.logger.Error("product lookup mismatch",
			zap.Int("requested", len(productIDs)),
			zap.Int("found", len(products)))
		return nil, apperr.ErrProductNotFound
	}

	if !member.IsActive() {
		return nil, apperr.ErrMemberNotActive
	}

	if len(lines) == 0 {
		return nil, apperr.Validation("no products to order")
	}

	paymentID, err := s.gateway.Charge(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Фиксированный порядок записи: платёж, затем заказ, затем привязка.
	// Сбой между списанием и сохранением оставляет осиротевший внешний
	// платёж; сверка таких платежей этим сервисом не выполняется.
	if _, err := s.repo.CreatePayment(ctx, paymentID, now); err != nil {
		s.logger.Error("save payment after successful charge",
			zap.String("paymentID", paymentID), zap.Error(err))
		return nil, fmt.Errorf("save payment: %w", err)
	}

	order := model.NewOrder(memberID, lines, paymentID, now)

	orderID, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		s.logger.Error("save order after successful charge",
			zap.String("paymentID", paymentID), zap.Error(err))
		return nil, fmt.Errorf("save order: %w", err)
	}
	order.ID = orderID

	if err := s.repo.LinkPaymentToOrder(ctx, paymentID, orderID); err != nil {
		s.logger.Error("link payment to order",
			zap.String("paymentID", paymentID), zap.Int64("orderID", orderID), zap.Error(err))
		return nil, fmt.Errorf("link payment: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("orderID", orderID),
		zap.String("paymentID", paymentID))

	return order, nil
}

// CancelOrder отменяет заказ. Возврат платежа выполняется до перевода заказа
// в CANCELLED: при неудачном возврате заказ остаётся CONFIRMED, и вызывающая
// сторона повторяет отмену позже.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	// Отмена не идемпотентна: повторная попытка отклоняется,
	// а не принимается молча.
	if !order.IsConfirmed() {
		return apperr.ErrOrderCancelled
	}

	// Возврат выполняется только по платежу, известному реестру:
	// подтверждённый заказ без записи о платеже — повреждённое состояние.
	if _, err := s.repo.GetPaymentByPaymentID(ctx, order.PaymentID); err != nil {
		s.logger.Error("payment record missing for confirmed order",
			zap.Int64("orderID", orderID),
			zap.String("paymentID", order.PaymentID),
			zap.Error(err))
		return fmt.Errorf("load payment record: %w", err)
	}

	if err := s.gateway.Cancel(ctx, order.PaymentID); err != nil {
		s.logger.Error("payment reversal failed, order stays confirmed",
			zap.Int64("orderID", orderID),
			zap.String("paymentID", order.PaymentID),
			zap.Error(err))
		return err
	}

	err = s.repo.MarkOrderCancelled(ctx, orderID, s.now())
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return apperr.ErrOrderCancelled
	}
	if err != nil {
		return fmt.Errorf("mark order cancelled: %w", err)
	}

	s.logger.Info("order cancelled",
		zap.Int64("orderID", orderID),
		zap.String("paymentID", order.PaymentID))

	return nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}
