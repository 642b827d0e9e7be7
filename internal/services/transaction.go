package services

import (
	"context"
	"strings"

	"github.com/money-manager/apiserver/types"
)

const maxTitleLength = 50

// TransactionRepository defines persistence operations for transactions.
// Every operation is scoped to an owning user id.
type TransactionRepository interface {
	ListByOwner(ctx context.Context, ownerID int) ([]types.Transaction, error)
	Get(ctx context.Context, ownerID int, id string) (types.Transaction, error)
	Create(ctx context.Context, tx types.Transaction) (types.Transaction, error)
	Update(ctx context.Context, tx types.Transaction) (types.Transaction, error)
	Delete(ctx context.Context, ownerID int, id string) error
	DeleteAll(ctx context.Context, ownerID int) (int64, error)
}

// TransactionService encapsulates owner-scoped transaction use-cases.
type TransactionService struct {
	repo TransactionRepository
}

func NewTransactionService(repo TransactionRepository) *TransactionService {
	return &TransactionService{repo: repo}
}

// List returns the owner's full transaction set, newest first, together
// with a summary computed over exactly that set.
func (s *TransactionService) List(ctx context.Context, ownerID int) ([]types.Transaction, types.Summary, error) {
	transactions, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, types.Summary{}, err
	}
	return transactions, Summarize(transactions), nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID int, id string) (types.Transaction, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *TransactionService) Create(ctx context.Context, ownerID int, title string, amount float64, txType string) (types.Transaction, error) {
	title = strings.TrimSpace(title)
	if err := validateFields(title, amount, txType); err != nil {
		return types.Transaction{}, err
	}

	return s.repo.Create(ctx, types.Transaction{
		Title:  title,
		Amount: amount,
		Type:   txType,
		UserID: ownerID,
	})
}

// Update re-resolves ownership before validating field contents, so an
// unowned or missing id is always reported as not found.
func (s *TransactionService) Update(ctx context.Context, ownerID int, id, title string, amount float64, txType string) (types.Transaction, error) {
	existing, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return types.Transaction{}, err
	}

	title = strings.TrimSpace(title)
	if err := validateFields(title, amount, txType); err != nil {
		return types.Transaction{}, err
	}

	existing.Title = title
	existing.Amount = amount
	existing.Type = txType
	return s.repo.Update(ctx, existing)
}

func (s *TransactionService) Delete(ctx context.Context, ownerID int, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

func (s *TransactionService) DeleteAll(ctx context.Context, ownerID int) (int64, error) {
	return s.repo.DeleteAll(ctx, ownerID)
}

// Summarize totals income and expenses over the given set. The balance is
// income minus expenses.
func Summarize(transactions []types.Transaction) types.Summary {
	var summary types.Summary
	for _, tx := range transactions {
		switch tx.Type {
		case types.TypeIncome:
			summary.Income += tx.Amount
		case types.TypeExpenses:
			summary.Expenses += tx.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expenses
	return summary
}

// validateFields checks title, then amount, then type; the first failing
// rule determines the reported error.
func validateFields(title string, amount float64, txType string) error {
	if title == "" {
		return &ValidationError{Message: "Please add a title"}
	}
	if len(title) > maxTitleLength {
		return &ValidationError{Message: "Title cannot be more than 50 characters"}
	}
	if amount <= 0 {
		return &ValidationError{Message: "Please add a positive amount"}
	}
	if txType != types.TypeIncome && txType != types.TypeExpenses {
		return &ValidationError{Message: "Please select a valid transaction type"}
	}
	return nil
}
