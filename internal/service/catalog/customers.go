package catalog

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// CustomerInput — данные для создания и изменения клиента.
type CustomerInput struct {
	FullName string
	Email    string
	Phone    string
}

func (in CustomerInput) normalize() (CustomerInput, error) {
	out := CustomerInput{
		FullName: strings.TrimSpace(in.FullName),
		Email:    domain.NormalizeEmail(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
	}
	if out.FullName == "" {
		return out, domain.Validation(domain.ErrNameRequired, "full name is required")
	}
	if out.Email == "" {
		return out, domain.Validation(domain.ErrEmailRequired, "email is required")
	}
	return out, nil
}

// CustomerService управляет клиентами.
type CustomerService struct {
	repo   domain.CustomerRepository
	now    func() time.Time
	newID  func() string
	logger *log.Entry
}

// NewCustomerService создаёт сервис клиентов.
func NewCustomerService(repo domain.CustomerRepository, options ...Option) *CustomerService {
	opts := buildOptions("customer-service", options)
	return &CustomerService{
		repo:   repo,
		now:    opts.Clock,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
}

// List возвращает клиентов, упорядоченных по имени.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Storage("list customers", err)
	}
	return customers, nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (domain.Customer, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail ищет клиента по email без учёта регистра и пробелов.
func (s *CustomerService) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (domain.Customer, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:        s.newID(),
		FullName:  in.FullName,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return domain.Customer{}, domain.Storage("create customer", err)
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer created")
	return customer, nil
}

func (s *CustomerService) Update(ctx context.Context, id string, in CustomerInput) (domain.Customer, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Customer{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	current.FullName = in.FullName
	current.Email = in.Email
	current.Phone = in.Phone
	if err := s.repo.Update(ctx, current); err != nil {
		return domain.Customer{}, domain.Storage("update customer", err)
	}
	return current, nil
}
