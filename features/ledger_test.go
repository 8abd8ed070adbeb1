package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"

	"invencare/internal/app"
	"invencare/internal/core/apperror"
	"invencare/internal/core/types"
	"invencare/internal/domain/catalog"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/storage"
)

type ledgerTestContext struct {
	dir      string
	backend  *storage.Backend
	app      *app.App
	recorded *ledger.Recorded
	err      error
	results  []error
	summary  *ledger.Summary
}

func (c *ledgerTestContext) reset() error {
	c.close()
	dir, err := os.MkdirTemp("", "invencare-features-*")
	if err != nil {
		return err
	}
	backend, err := storage.Open(context.Background(), storage.Config{
		Driver:     storage.DriverSQLite,
		SQLitePath: filepath.Join(dir, "ledger.db"),
	})
	if err != nil {
		return err
	}
	*c = ledgerTestContext{dir: dir, backend: backend, app: app.New(backend, app.Options{})}
	return nil
}

func (c *ledgerTestContext) close() {
	if c.backend != nil {
		c.backend.Close()
	}
	if c.dir != "" {
		_ = os.RemoveAll(c.dir)
	}
	c.backend, c.dir = nil, ""
}

func (c *ledgerTestContext) theDemoCatalogIsLoaded() error {
	return c.backend.LoadCatalog(context.Background(), catalog.DemoStores(), catalog.DemoProducts())
}

func (c *ledgerTestContext) productInStoreHasQuantity(productID, storeID string, quantity int) error {
	p, err := c.app.Catalog.GetProduct(context.Background(), productID, storeID)
	if err != nil {
		return err
	}
	if p.Quantity != int64(quantity) {
		return fmt.Errorf("expected %s@%s quantity %d, got %d", productID, storeID, quantity, p.Quantity)
	}
	return nil
}

func (c *ledgerTestContext) record(in ledger.RecordInput) {
	c.recorded, c.err = c.app.Ledger.Record(context.Background(), in)
}

func (c *ledgerTestContext) userRecords(user, txType string, quantity int, productID, price, storeID string) error {
	unitPrice, err := types.NewMoneyFromString(price)
	if err != nil {
		return err
	}
	c.record(ledger.RecordInput{
		Type:      txType,
		ProductID: productID,
		Quantity:  types.Units(quantity),
		UnitPrice: unitPrice,
		StoreID:   storeID,
		UserID:    userID(user),
		UserName:  user,
	})
	return nil
}

func (c *ledgerTestContext) userTransfers(user string, quantity int, productID, from, to string) error {
	c.record(ledger.RecordInput{
		Type:              "Transfer",
		ProductID:         productID,
		Quantity:          types.Units(quantity),
		StoreID:           from,
		TransferToStoreID: to,
		UserID:            userID(user),
		UserName:          user,
	})
	return nil
}

func (c *ledgerTestContext) cashiersConcurrentlySell(n, quantity int, productID, storeID string) error {
	c.results = make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, c.results[i] = c.app.Ledger.Record(context.Background(), ledger.RecordInput{
				Type:      "Sale",
				ProductID: productID,
				Quantity:  types.Units(quantity),
				UnitPrice: types.MustMoney("1.99"),
				StoreID:   storeID,
				UserID:    fmt.Sprintf("u-cashier-%d", i),
				UserName:  fmt.Sprintf("Cashier %d", i),
			})
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *ledgerTestContext) theTransactionIsRecordedWithAReferenceStartingWith(prefix string) error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %w", c.err)
	}
	if ref := c.recorded.Transaction.ReferenceNumber; !strings.HasPrefix(ref, prefix) {
		return fmt.Errorf("expected reference starting with %s, got %s", prefix, ref)
	}
	return nil
}

func (c *ledgerTestContext) theTransactionTotalIs(total string) error {
	if c.recorded == nil {
		return errors.New("no transaction recorded")
	}
	if got := c.recorded.Transaction.TotalAmount.StringFixed(types.MoneyScale); got != total {
		return fmt.Errorf("expected total %s, got %s", total, got)
	}
	return nil
}

func (c *ledgerTestContext) thereAreNoWarnings() error {
	if c.recorded == nil {
		return errors.New("no transaction recorded")
	}
	if len(c.recorded.Warnings) != 0 {
		return fmt.Errorf("expected no warnings, got %+v", c.recorded.Warnings)
	}
	return nil
}

func (c *ledgerTestContext) theWarningIsReported(code string) error {
	if c.recorded == nil {
		return fmt.Errorf("no transaction recorded: %v", c.err)
	}
	for _, w := range c.recorded.Warnings {
		if w.Code == code {
			return nil
		}
	}
	return fmt.Errorf("warning %s not reported, got %+v", code, c.recorded.Warnings)
}

func (c *ledgerTestContext) theTransactionFailsWith(code string) error {
	if c.err == nil {
		return errors.New("expected an error, transaction succeeded")
	}
	if !apperror.IsCode(c.err, code) {
		return fmt.Errorf("expected %s, got %v", code, c.err)
	}
	return nil
}

func (c *ledgerTestContext) salesSucceed(n int) error {
	ok := 0
	for _, err := range c.results {
		if err == nil {
			ok++
		}
	}
	if ok != n {
		return fmt.Errorf("expected %d successful sales, got %d (%v)", n, ok, c.results)
	}
	return nil
}

func (c *ledgerTestContext) salesFailWith(n int, code string) error {
	failed := 0
	for _, err := range c.results {
		if err != nil && apperror.IsCode(err, code) {
			failed++
		}
	}
	if failed != n {
		return fmt.Errorf("expected %d sales failing with %s, got %d (%v)", n, code, failed, c.results)
	}
	return nil
}

func (c *ledgerTestContext) theLedgerHoldsTransactionsFor(n int, storeID string) error {
	page, err := c.app.Ledger.List(context.Background(), ledger.ListFilter{StoreID: storeID})
	if err != nil {
		return err
	}
	if page.Total != int64(n) {
		return fmt.Errorf("expected %d transactions, got %d", n, page.Total)
	}
	return nil
}

func (c *ledgerTestContext) theSummaryForIsRequested(storeID string) error {
	c.summary, c.err = c.app.Ledger.Summarize(context.Background(), ledger.ListFilter{StoreID: storeID})
	return c.err
}

func (c *ledgerTestContext) theSummaryShowsTransactionsWithTotalSales(n int, total string) error {
	if c.summary == nil {
		return errors.New("no summary")
	}
	if c.summary.TotalTransactions != int64(n) {
		return fmt.Errorf("expected %d transactions, got %d", n, c.summary.TotalTransactions)
	}
	if got := c.summary.TotalSales.StringFixed(types.MoneyScale); got != total {
		return fmt.Errorf("expected total sales %s, got %s", total, got)
	}
	return nil
}

func userID(name string) string {
	return "u-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.close()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the demo catalog is loaded$`, tc.theDemoCatalogIsLoaded)
	ctx.Step(`^product "([^"]*)" in "([^"]*)" has quantity (-?\d+)$`, tc.productInStoreHasQuantity)
	ctx.Step(`^"([^"]*)" records a "([^"]*)" of (\d+) "([^"]*)" at "([^"]*)" in "([^"]*)"$`, tc.userRecords)

	// When steps
	ctx.Step(`^"([^"]*)" transfers (\d+) "([^"]*)" from "([^"]*)" to "([^"]*)"$`, tc.userTransfers)
	ctx.Step(`^(\d+) cashiers concurrently sell (\d+) "([^"]*)" in "([^"]*)"$`, tc.cashiersConcurrentlySell)
	ctx.Step(`^the summary for "([^"]*)" is requested$`, tc.theSummaryForIsRequested)

	// Then steps
	ctx.Step(`^the transaction is recorded with a reference starting with "([^"]*)"$`, tc.theTransactionIsRecordedWithAReferenceStartingWith)
	ctx.Step(`^the transaction total is "([^"]*)"$`, tc.theTransactionTotalIs)
	ctx.Step(`^there are no warnings$`, tc.thereAreNoWarnings)
	ctx.Step(`^the warning "([^"]*)" is reported$`, tc.theWarningIsReported)
	ctx.Step(`^the transaction fails with "([^"]*)"$`, tc.theTransactionFailsWith)
	ctx.Step(`^(\d+) sales succeed$`, tc.salesSucceed)
	ctx.Step(`^(\d+) sales fail with "([^"]*)"$`, tc.salesFailWith)
	ctx.Step(`^the ledger holds (\d+) transactions for "([^"]*)"$`, tc.theLedgerHoldsTransactionsFor)
	ctx.Step(`^the summary shows (\d+) transactions with total sales "([^"]*)"$`, tc.theSummaryShowsTransactionsWithTotalSales)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"ledger.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
