// Package memory хранилище биллинга в памяти процесса.
// Транзакции сериализуются общим мьютексом и работают с копиями записей,
// которые переносятся в хранилище только после успешного завершения.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

type Store struct {
	mu sync.Mutex

	users    map[int64]models.User
	coupons  map[int64]models.Coupon
	plans    map[int64]models.Plan
	invoices map[int64]models.Invoice

	nextID int64
	now    func() time.Time
}

// New создаёт пустое хранилище с купоном "без скидки" под ID 1.
func New() *Store {
	s := &Store{
		users:    make(map[int64]models.User),
		coupons:  make(map[int64]models.Coupon),
		plans:    make(map[int64]models.Plan),
		invoices: make(map[int64]models.Invoice),
		nextID:   1,
		now:      time.Now,
	}
	s.coupons[1] = models.Coupon{ID: 1, Code: "DEFAULT", IsUnlimited: true}
	s.nextID = 2
	return s
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// CreateUser добавляет пользователя с нулевым балансом.
func (s *Store) CreateUser(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return 0, fmt.Errorf("memory.CreateUser: username %q taken", username)
		}
	}
	id := s.id()
	s.users[id] = models.User{ID: id, Username: username, Status: models.StatusInactive}
	return id, nil
}

// PutUser сохраняет пользователя целиком, удобно для подготовки тестовых данных.
func (s *Store) PutUser(u models.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return u.ID
}

func (s *Store) GetUser(_ context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CompareAndSetUserStatus(_ context.Context, userID int64, from, to models.UserStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if u.Status != from {
		return false, nil
	}
	u.Status = to
	s.users[userID] = u
	return true, nil
}

// PutCoupon сохраняет купон, включая счётчик использований.
func (s *Store) PutCoupon(c models.Coupon) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		c.ID = s.id()
	}
	s.coupons[c.ID] = c
	return c.ID
}

func (s *Store) GetCoupon(_ context.Context, couponID int64) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[couponID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coupons {
		if c.Code == code {
			found := c
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

// PutPlan сохраняет план, при необходимости назначая ID и UUID.
func (s *Store) PutPlan(p models.Plan) *models.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.id()
	}
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	s.plans[p.ID] = p
	return &p
}

func (s *Store) GetPlanByUUID(_ context.Context, planUUID uuid.UUID) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.plans {
		if p.UUID == planUUID {
			found := p
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListPlansByCoupon(_ context.Context, couponID int64) ([]*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Plan
	for _, p := range s.plans {
		if p.CouponID == couponID {
			plan := p
			result = append(result, &plan)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if c := result[i].PriceUSD.Cmp(result[j].PriceUSD); c != 0 {
			return c < 0
		}
		if result[i].NDays != result[j].NDays {
			return result[i].NDays < result[j].NDays
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invoices {
		if existing.PaymentID == inv.PaymentID {
			return storage.ErrPaymentIDConflict
		}
	}
	inv.ID = s.id()
	inv.Created = s.now()
	inv.State = models.InvoiceUnpaid
	inv.PriceXMR = inv.PriceXMR.Round(models.PriceXMRPlaces)
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) GetInvoiceByPaymentID(_ context.Context, paymentID models.PaymentID) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invoices {
		if inv.PaymentID == paymentID {
			found := inv
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Invoices возвращает копию всех счетов.
func (s *Store) Invoices() []models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// InTx выполняет fn под общим мьютексом. Изменения применяются только при успехе.
func (s *Store) InTx(ctx context.Context, fn storage.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		store:    s,
		users:    make(map[int64]models.User),
		coupons:  make(map[int64]models.Coupon),
		invoices: make(map[int64]models.Invoice),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	for id, u := range t.users {
		s.users[id] = u
	}
	for id, c := range t.coupons {
		s.coupons[id] = c
	}
	for id, inv := range t.invoices {
		s.invoices[id] = inv
	}
	return nil
}

// tx накапливает изменённые записи до фиксации.
type tx struct {
	store    *Store
	users    map[int64]models.User
	coupons  map[int64]models.Coupon
	invoices map[int64]models.Invoice
}

func (t *tx) invoice(id int64) (models.Invoice, bool) {
	if inv, ok := t.invoices[id]; ok {
		return inv, true
	}
	inv, ok := t.store.invoices[id]
	return inv, ok
}

func (t *tx) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	for _, existing := range t.store.invoices {
		if existing.PaymentID == inv.PaymentID {
			return storage.ErrPaymentIDConflict
		}
	}
	for _, staged := range t.invoices {
		if staged.PaymentID == inv.PaymentID {
			return storage.ErrPaymentIDConflict
		}
	}
	inv.ID = t.store.id()
	inv.Created = t.store.now()
	inv.State = models.InvoiceUnpaid
	inv.PriceXMR = inv.PriceXMR.Round(models.PriceXMRPlaces)
	t.invoices[inv.ID] = *inv
	return nil
}

func (t *tx) MarkInvoicePaid(_ context.Context, invoiceID int64) (bool, error) {
	inv, ok := t.invoice(invoiceID)
	if !ok {
		return false, nil
	}
	state, err := inv.State.MarkPaid()
	if err != nil {
		return false, nil
	}
	inv.State = state
	t.invoices[invoiceID] = inv
	return true, nil
}

func (t *tx) GetInvoice(_ context.Context, invoiceID int64) (*models.Invoice, error) {
	inv, ok := t.invoice(invoiceID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &inv, nil
}

func (t *tx) GetPlan(_ context.Context, planID int64) (*models.Plan, error) {
	p, ok := t.store.plans[planID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (t *tx) ConsumeCoupon(_ context.Context, couponID int64) (bool, error) {
	c, ok := t.coupons[couponID]
	if !ok {
		c, ok = t.store.coupons[couponID]
	}
	if !ok {
		return false, nil
	}
	if !c.IsUnlimited && c.UsedCount >= c.TotalCount {
		return false, nil
	}
	c.UsedCount++
	t.coupons[couponID] = c
	return true, nil
}

func (t *tx) GetUserForUpdate(_ context.Context, userID int64) (*models.User, error) {
	u, ok := t.users[userID]
	if !ok {
		u, ok = t.store.users[userID]
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (t *tx) UpdateUserAccount(_ context.Context, user *models.User) error {
	if _, ok := t.store.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	t.users[user.ID] = *user
	return nil
}

// Compile-time checks.
var _ storage.Tx = (*tx)(nil)
