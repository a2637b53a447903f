// Package engine turns parsed statements into committed ledger rows. It owns
// account and currency resolution, exchange rate computation, and the
// per-row duplicate handling that makes re-ingestion idempotent.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/parser"
	"github.com/egorv/bankflow/internal/rates"
	"github.com/egorv/bankflow/internal/rules"
	"github.com/egorv/bankflow/internal/service"
)

// ReferenceCurrencyCode is the default original currency for rows that carry
// no explicit currency pair.
const ReferenceCurrencyCode = "USD"

// Result summarizes one reconciliation batch.
type Result struct {
	Diagnostics []string
	Created     int
	Skipped     int
}

// Summary renders the counts sentence stored in the import notes.
func (r *Result) Summary() string {
	return fmt.Sprintf("created %d, skipped %d", r.Created, r.Skipped)
}

// Reconciler maps raw statement records onto ledger accounts, currencies and
// categories, and commits each row as its own transaction.
type Reconciler struct {
	store    service.Storage
	resolver *rates.Resolver
}

// NewReconciler creates a reconciler backed by the given storage.
func NewReconciler(store service.Storage) *Reconciler {
	return &Reconciler{
		store:    store,
		resolver: rates.NewResolver(store),
	}
}

// Reconcile commits every resolvable record of the statement for the owner.
// Per-row problems (unresolved accounts or currencies, transfers without a
// destination, duplicates) are skips, never batch failures; only a storage
// error aborts and returns the partial result alongside the error.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID int64, imp *model.StatementImport, stmt *parser.Statement) (*Result, error) {
	result := &Result{Diagnostics: stmt.ErrorStrings()}

	mappings, err := r.store.GetCategoryMappings(ctx, ownerID)
	if err != nil {
		return result, fmt.Errorf("failed to load category rules: %w", err)
	}
	matcher := rules.NewMatcher(mappings)

	reference, err := r.store.GetCurrencyByCode(ctx, ReferenceCurrencyCode)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return result, fmt.Errorf("failed to load reference currency: %w", err)
	}

	for i, rec := range stmt.Records {
		// Number diagnostics by the source row so they line up with the
		// parser's own row errors in the combined notes.
		rowNum := rec.Row
		if rowNum == 0 {
			rowNum = i + 1
		}

		txn, softErr := r.buildTransaction(ctx, ownerID, imp, &stmt.Header, rec, reference)
		if softErr != nil {
			result.Skipped++
			result.Diagnostics = append(result.Diagnostics,
				fmt.Sprintf("Row %d: %s", rowNum, softErr))
			continue
		}

		txn.CategoryID = matcher.Match(txn.Place)

		created, err := r.store.InsertTransaction(ctx, txn)
		if err != nil {
			return result, fmt.Errorf("failed to commit row %d: %w", rowNum, err)
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
			slog.Debug("Duplicate statement row skipped",
				"import_id", imp.ID, "row", rowNum)
		}
	}

	return result, nil
}

// buildTransaction resolves one record into a ledger entry. A returned error
// is always a soft, per-row problem.
func (r *Reconciler) buildTransaction(ctx context.Context, ownerID int64, imp *model.StatementImport, header *parser.Header, rec parser.Record, reference *model.Currency) (*model.Transaction, error) {
	account, err := r.resolveAccount(ctx, ownerID, rec, header, imp.Source)
	if err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Type:           rec.Type,
		Place:          rec.Place,
		Comment:        rec.Description,
		ImportID:       imp.ID,
		AccountID:      account.ID,
		Amount:         rec.Amount,
		Date:           rec.Date,
		ProcessingDate: rec.Date,
	}
	if !rec.ValueDate.IsZero() {
		txn.Date = rec.ValueDate
	}

	if rec.Type == model.TypeTransfer {
		if err := r.resolveTransfer(ctx, ownerID, rec, account, txn); err != nil {
			return nil, err
		}
		return txn, nil
	}

	if rec.CurrencyPair != "" {
		if err := r.resolvePairLeg(ctx, rec, txn); err != nil {
			return nil, err
		}
		return txn, nil
	}

	// Plain row: posted leg in the account currency, original leg in the
	// reference currency unless they coincide.
	txn.CurrencyID = account.CurrencyID
	if reference == nil {
		return nil, fmt.Errorf("%w: reference currency %s is not configured",
			common.ErrCurrencyNotResolved, ReferenceCurrencyCode)
	}
	txn.OriginalCurrencyID = reference.ID
	return txn, r.fillOriginalLeg(ctx, rec, txn)
}

// resolvePairLeg handles a row that was itself a currency conversion: the
// pair swaps both currencies in and the quoted rate arrives inverted.
func (r *Reconciler) resolvePairLeg(ctx context.Context, rec parser.Record, txn *model.Transaction) error {
	postedCode, originalCode, ok := parser.SplitCurrencyPair(rec.CurrencyPair)
	if !ok {
		return fmt.Errorf("%w: malformed currency pair %q",
			common.ErrCurrencyNotResolved, rec.CurrencyPair)
	}

	posted, err := r.store.GetCurrencyByCode(ctx, postedCode)
	if err != nil {
		return fmt.Errorf("%w: unknown currency %q", common.ErrCurrencyNotResolved, postedCode)
	}
	original, err := r.store.GetCurrencyByCode(ctx, originalCode)
	if err != nil {
		return fmt.Errorf("%w: unknown currency %q", common.ErrCurrencyNotResolved, originalCode)
	}

	txn.CurrencyID = posted.ID
	txn.OriginalCurrencyID = original.ID

	rate := rates.FallbackRate
	if rec.ConversionRate.Valid {
		rate = rates.Invert(rec.ConversionRate.Decimal)
	}
	txn.ExchangeRate = rate
	txn.OriginalAmount = txn.Amount.Div(rate).Round(2)
	return nil
}

// resolveTransfer assigns the posted leg to the destination account currency
// and the original leg to the source account currency.
func (r *Reconciler) resolveTransfer(ctx context.Context, ownerID int64, rec parser.Record, source *model.Account, txn *model.Transaction) error {
	if rec.ToAccount == "" {
		return fmt.Errorf("%w: transfer row names no destination", common.ErrAccountNotResolved)
	}
	destination, err := r.store.GetAccountByNameOrNumber(ctx, ownerID, rec.ToAccount)
	if err != nil {
		return fmt.Errorf("%w: transfer destination %q", common.ErrAccountNotResolved, rec.ToAccount)
	}

	txn.ToAccountID = &destination.ID
	txn.CurrencyID = destination.CurrencyID
	txn.OriginalCurrencyID = source.CurrencyID
	return r.fillOriginalLeg(ctx, rec, txn)
}

// fillOriginalLeg computes the original amount and the effective rate once
// both currency ids are set. Same-currency legs carry a unit rate. An export
// that quotes both legs itself fixes the rate as |amount/original|; otherwise
// the resolver supplies it.
func (r *Reconciler) fillOriginalLeg(ctx context.Context, rec parser.Record, txn *model.Transaction) error {
	if txn.CurrencyID == txn.OriginalCurrencyID {
		txn.OriginalAmount = txn.Amount
		txn.ExchangeRate = decimal.NewFromInt(1)
		return nil
	}

	if rec.OriginalAmount.Valid && !rec.OriginalAmount.Decimal.IsZero() {
		txn.OriginalAmount = rec.OriginalAmount.Decimal
		txn.ExchangeRate = rates.Derive(txn.Amount, txn.OriginalAmount)
		return nil
	}

	rate, err := r.resolver.Resolve(ctx, txn.CurrencyID, txn.Date)
	if err != nil {
		return fmt.Errorf("failed to resolve rate: %w", err)
	}
	txn.ExchangeRate = rate
	txn.OriginalAmount = txn.Amount.Div(rate).Round(2)
	return nil
}

// bankNamePrefixes maps a statement source to the account name prefix used
// for last-resort resolution.
var bankNamePrefixes = map[string]string{
	parser.SourceBCC:      "BCC",
	parser.SourceFreedom:  "FF",
	parser.SourceCommBank: "CommBank",
}

func bankNamePrefix(source string) string {
	if prefix, ok := bankNamePrefixes[source]; ok {
		return prefix
	}
	return strings.ToUpper(source)
}

// resolveAccount walks the resolution chain: exact number on the row, then
// the card last-4 lookups, then the statement's header-declared account,
// then the bank-prefixed default.
func (r *Reconciler) resolveAccount(ctx context.Context, ownerID int64, rec parser.Record, header *parser.Header, source string) (*model.Account, error) {
	if rec.AccountNumber != "" {
		account, err := r.store.GetAccountByNumber(ctx, ownerID, rec.AccountNumber)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}

		if last4, ok := cardLast4(rec.AccountNumber); ok {
			if header.Currency != "" {
				account, err = r.store.GetAccountByCard(ctx, ownerID, last4, header.Currency)
				if err == nil {
					return account, nil
				}
				if !errors.Is(err, common.ErrNotFound) {
					return nil, err
				}
			}
			account, err = r.store.GetDefaultAccountByCard(ctx, ownerID, last4)
			if err == nil {
				return account, nil
			}
			if !errors.Is(err, common.ErrNotFound) {
				return nil, err
			}
		}
	}

	if header.AccountNumber != "" && header.Currency != "" {
		account, err := r.store.GetHeaderAccount(ctx, ownerID, header.Currency, header.AccountNumber)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	account, err := r.store.GetBankDefaultAccount(ctx, ownerID, bankNamePrefix(source))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: row account %q", common.ErrAccountNotResolved, rec.AccountNumber)
}

// cardLast4 extracts the trailing four digits of a masked card reference.
func cardLast4(ref string) (string, bool) {
	digits := make([]rune, 0, len(ref))
	for _, r := range ref {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "", false
	}
	return string(digits[len(digits)-4:]), true
}
