package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/order-admin/internal/domain"
	"github.com/hanko-field/order-admin/internal/platform/pagination"
	"github.com/hanko-field/order-admin/internal/repositories"
)

const (
	orderIDPrefix        = "ord_"
	maxCancelReasonRunes = 500
)

var (
	// ErrOrderInvalidInput signals malformed order commands.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order, its customer, or a product is missing.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInsufficientStock indicates a line exceeds available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderInvalidTransition indicates the lifecycle does not allow the requested move.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderUnknownStep indicates the requested target is not a lifecycle state.
	ErrOrderUnknownStep = errors.New("order: unknown status step")
	// ErrOrderDuplicate indicates an order with the generated id already exists.
	ErrOrderDuplicate = errors.New("order: duplicate")
	// ErrOrderConflict indicates the stored status changed concurrently.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Customers   repositories.CustomerRepository
	Inventory   InventoryService
	History     PurchaseHistoryService
	UnitOfWork  repositories.UnitOfWork
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	customers repositories.CustomerRepository
	inventory InventoryService
	history   PurchaseHistoryService
	uow       repositories.UnitOfWork
	events    OrderEventPublisher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Customers == nil:
		return nil, errors.New("order service: customer repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order service: inventory service is required")
	case deps.History == nil:
		return nil, errors.New("order service: purchase history service is required")
	case deps.UnitOfWork == nil:
		return nil, errors.New("order service: unit of work is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		customers: deps.Customers,
		inventory: deps.Inventory,
		history:   deps.History,
		uow:       deps.UnitOfWork,
		events:    deps.Events,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line is required", ErrOrderInvalidInput)
	}
	requested := make([]StockLineInput, len(cmd.Lines))
	for i, line := range cmd.Lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return Order{}, fmt.Errorf("%w: line %d product id is required", ErrOrderInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line %d quantity must be > 0", ErrOrderInvalidInput, i)
		}
		requested[i] = StockLineInput{ProductID: id, Quantity: line.Quantity}
	}

	orderID := strings.TrimSpace(s.newID())
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: generated empty order id", ErrOrderUnavailable)
	}
	now := s.clock()

	var created Order
	err := runInTx(ctx, s.uow, func(txCtx context.Context) error {
		if _, err := s.customers.FindByID(txCtx, customerID); err != nil {
			return mapCustomerError(err)
		}

		snapshots, err := s.inventory.ReserveLines(txCtx, requested)
		if err != nil {
			return err
		}
		prices := make(map[string]int64, len(snapshots))
		for _, snap := range snapshots {
			prices[snap.ProductID] = snap.UnitPrice
		}

		lines := make([]OrderLine, len(requested))
		for i, line := range requested {
			lines[i] = OrderLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: prices[line.ProductID]}
		}
		order := domain.NewOrderFromLines(orderID, customerID, lines, now)

		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		if err := s.history.Link(txCtx, customerID, orderID); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":    created.ID,
		"customerId": created.CustomerID,
		"total":      created.Total,
		"lines":      len(created.ProductIDs),
	})
	s.publish(ctx, orderEvent(OrderEventCreated, created, "", now))
	return created, nil
}

func (s *orderService) Advance(ctx context.Context, cmd AdvanceOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, err := parseTargetStatus(cmd.TargetStatus)
	if err != nil {
		return Order{}, err
	}
	if cmd.ExpectedStatus != nil && !cmd.ExpectedStatus.Valid() {
		return Order{}, fmt.Errorf("%w: expected status %q", ErrOrderInvalidInput, *cmd.ExpectedStatus)
	}

	now := s.clock()
	var (
		updated  Order
		previous domain.OrderStatus
	)
	err = runInTx(ctx, s.uow, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: order %s is %s, expected %s", ErrOrderConflict, orderID, order.Status, *cmd.ExpectedStatus)
		}
		if err := validateTransition(order.Status, target); err != nil {
			return err
		}
		previous = order.Status

		order.Status = target
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order, previous); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	s.logger(ctx, "order.advanced", map[string]any{
		"orderId": updated.ID,
		"from":    string(previous),
		"to":      string(updated.Status),
		"actorId": strings.TrimSpace(cmd.ActorID),
	})
	s.publish(ctx, orderEvent(OrderEventStatusChanged, updated, previous, now))
	return updated, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	customerID := strings.TrimSpace(cmd.CustomerID)
	if orderID == "" || customerID == "" {
		return Order{}, fmt.Errorf("%w: order id and customer id are required", ErrOrderInvalidInput)
	}
	reason := s.sanitizeReason(cmd.Reason)

	now := s.clock()
	var cancelled Order
	err := runInTx(ctx, s.uow, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		// A foreign order reads as missing.
		if order.CustomerID != customerID {
			return fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
		}
		if _, err := s.customers.FindByID(txCtx, customerID); err != nil {
			return mapCustomerError(err)
		}
		if err := validateTransition(order.Status, domain.OrderStatusCancelled); err != nil {
			return err
		}
		cancelled, err = s.cancelInTx(txCtx, order, reason, now)
		return err
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId":    cancelled.ID,
		"customerId": cancelled.CustomerID,
	})
	s.publish(ctx, orderEvent(OrderEventCancelled, cancelled, domain.OrderStatusPending, now))
	return cancelled, nil
}

// cancelInTx restores stock, marks the order cancelled and unlinks it from the owner's
// history. The order and its customer must already be read in the same unit of work.
func (s *orderService) cancelInTx(ctx context.Context, order Order, reason string, now time.Time) (Order, error) {
	lines := order.Lines()
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("%w: order %s has inconsistent lines", ErrOrderUnavailable, order.ID)
	}
	restore := make([]StockLineInput, len(lines))
	for i, line := range lines {
		restore[i] = StockLineInput{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	if _, err := s.inventory.RestoreLines(ctx, restore); err != nil {
		return Order{}, err
	}

	previous := order.Status
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	cancelledAt := now
	order.CancelledAt = &cancelledAt
	order.CancelReason = reason
	if err := s.orders.Update(ctx, order, previous); err != nil {
		return Order{}, err
	}
	if err := s.history.Unlink(ctx, order.CustomerID, order.ID); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderError(err)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: status %q", ErrOrderInvalidInput, status)
		}
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:     filter.Status,
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderError(err)
	}
	return page, nil
}

func (s *orderService) sanitizeReason(reason string) string {
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(reason))
	if utf8.RuneCountInString(cleaned) <= maxCancelReasonRunes {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxCancelReasonRunes]))
}

func (s *orderService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId":   event.OrderID,
			"eventType": event.Type,
			"error":     err.Error(),
		})
	}
}

// mapOrderError folds inventory, customer and store failures into order sentinels.
func mapOrderError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrOrderInvalidInput, ErrOrderNotFound, ErrOrderInsufficientStock, ErrOrderInvalidTransition,
		ErrOrderUnknownStep, ErrOrderDuplicate, ErrOrderConflict, ErrOrderUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorDuplicate:
			return fmt.Errorf("%w: %s", ErrOrderDuplicate, orderErr.Message)
		case repositories.OrderErrorStatusMismatch:
			return fmt.Errorf("%w: %s", ErrOrderConflict, orderErr.Message)
		}
	}

	switch {
	case errors.Is(err, ErrInventoryInsufficientStock):
		return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
	case errors.Is(err, ErrInventoryNotFound), errors.Is(err, ErrCustomerNotFound):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case errors.Is(err, ErrInventoryInvalidInput), errors.Is(err, ErrCustomerInvalidInput),
		errors.Is(err, pagination.ErrInvalidPageToken), errors.Is(err, pagination.ErrInvalidPageSize):
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	case errors.Is(err, ErrInventoryUnavailable), errors.Is(err, ErrCustomerUnavailable):
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	case isRepoUnavailable(err):
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return err
}
