package ledger_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian/internal/ledger"
	_ "github.com/meridian-bank/meridian/testing"
)

// memStore is an in-memory Store with real per-row mutexes, so the lock
// ordering the service relies on is exercised for real in tests.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
	byUser   map[int64]string
	log      []ledger.Transaction
	nextID   int64
}

type memAccount struct {
	mu   sync.Mutex
	acct ledger.Account
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*memAccount),
		byUser:   make(map[int64]string),
	}
}

func (m *memStore) addAccount(number string, userID int64, balance string, status ledger.Status) {
	m.accounts[number] = &memAccount{acct: ledger.Account{
		AccountNumber: number,
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		Status:        status,
		CreatedAt:     time.Now(),
	}}
	m.byUser[userID] = number
}

func (m *memStore) balance(number string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[number].acct.Balance
}

func (m *memStore) transactions() []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Transaction, len(m.log))
	copy(out, m.log)
	return out
}

type memUnit struct {
	store   *memStore
	locked  []*memAccount
	deltas  map[string]decimal.Decimal
	pending []ledger.TransactionInput
}

func (m *memStore) InUnit(ctx context.Context, fn func(ctx context.Context, u ledger.Unit) error) error {
	u := &memUnit{store: m, deltas: make(map[string]decimal.Decimal)}
	err := fn(ctx, u)
	if err == nil {
		m.commit(u)
	}
	for i := len(u.locked) - 1; i >= 0; i-- {
		u.locked[i].mu.Unlock()
	}
	return err
}

func (m *memStore) commit(u *memUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for number, delta := range u.deltas {
		acct := m.accounts[number]
		acct.acct.Balance = acct.acct.Balance.Add(delta)
	}
	for _, rec := range u.pending {
		m.nextID++
		m.log = append(m.log, ledger.Transaction{
			ID:             m.nextID,
			UserID:         rec.UserID,
			AccountNumber:  rec.AccountNumber,
			Type:           rec.Type,
			Amount:         rec.Amount,
			BalanceAfter:   rec.BalanceAfter,
			RelatedAccount: rec.RelatedAccount,
			CreatedAt:      time.Now(),
		})
	}
}

func (m *memStore) ReadBalance(ctx context.Context, number string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[number]
	if !ok {
		return decimal.Decimal{}, ledger.ErrNotFound
	}
	return acct.acct.Balance, nil
}

func (m *memStore) History(ctx context.Context, userID int64, limit, offset int) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []ledger.Transaction
	for _, t := range m.log {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, nil
}

func (u *memUnit) LockAccount(ctx context.Context, number string) (*ledger.Account, error) {
	u.store.mu.Lock()
	acct, ok := u.store.accounts[number]
	u.store.mu.Unlock()
	if !ok {
		return nil, ledger.ErrNotFound
	}
	acct.mu.Lock()
	u.locked = append(u.locked, acct)
	snapshot := acct.acct
	snapshot.Balance = snapshot.Balance.Add(u.deltas[number])
	return &snapshot, nil
}

func (u *memUnit) LockAccountByUser(ctx context.Context, userID int64) (*ledger.Account, error) {
	u.store.mu.Lock()
	number, ok := u.store.byUser[userID]
	u.store.mu.Unlock()
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return u.LockAccount(ctx, number)
}

func (u *memUnit) AccountNumberForUser(ctx context.Context, userID int64) (string, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	number, ok := u.store.byUser[userID]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return number, nil
}

func (u *memUnit) ApplyDelta(ctx context.Context, number string, delta decimal.Decimal, requireActive bool) (decimal.Decimal, bool, error) {
	u.store.mu.Lock()
	acct, ok := u.store.accounts[number]
	u.store.mu.Unlock()
	if !ok {
		return decimal.Decimal{}, false, nil
	}
	if requireActive && acct.acct.Status != ledger.StatusActive {
		return decimal.Decimal{}, false, nil
	}
	next := acct.acct.Balance.Add(u.deltas[number]).Add(delta)
	if next.Sign() < 0 {
		return decimal.Decimal{}, false, nil
	}
	u.deltas[number] = u.deltas[number].Add(delta)
	return next, true, nil
}

func (u *memUnit) InsertTransaction(ctx context.Context, rec ledger.TransactionInput) error {
	u.pending = append(u.pending, rec)
	return nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []int64
}

func (r *recordingInvalidator) InvalidateProfile(ctx context.Context, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func newService(store *memStore, inval ledger.Invalidator) *ledger.Service {
	return ledger.NewService(ledger.ServiceParams{Store: store, Invalidator: inval})
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDepositCreditsAndLogs(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "0.00", ledger.StatusActive)
	inval := &recordingInvalidator{}
	svc := newService(store, inval)

	balance, err := svc.Deposit(context.Background(), "1000000001", amt("100.00"))
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("100.00")))
	require.True(t, store.balance("1000000001").Equal(amt("100.00")))

	log := store.transactions()
	require.Len(t, log, 1)
	require.Equal(t, ledger.TypeDeposit, log[0].Type)
	require.True(t, log[0].Amount.Equal(amt("100.00")))
	require.True(t, log[0].BalanceAfter.Equal(amt("100.00")))
	require.Nil(t, log[0].RelatedAccount)
	require.Equal(t, []int64{1}, inval.users)
}

func TestDepositIgnoresSuspendedStatus(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "10.00", ledger.StatusSuspended)
	svc := newService(store, nil)

	balance, err := svc.Deposit(context.Background(), "1000000001", amt("5.00"))
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("15.00")))
}

func TestDepositUnknownAccount(t *testing.T) {
	svc := newService(newMemStore(), nil)
	_, err := svc.Deposit(context.Background(), "9999999999", amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestValidateAmountRejections(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "50.00", ledger.StatusActive)
	svc := newService(store, nil)

	for _, bad := range []string{"0", "-5.00", "1.005"} {
		_, err := svc.Deposit(context.Background(), "1000000001", amt(bad))
		require.ErrorIs(t, err, ledger.ErrInvalidAmount, "amount %s", bad)
		_, err = svc.WithdrawByUser(context.Background(), 1, amt(bad))
		require.ErrorIs(t, err, ledger.ErrInvalidAmount, "amount %s", bad)
	}
	require.Empty(t, store.transactions())
}

func TestWithdrawInsufficientLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "50.00", ledger.StatusActive)
	svc := newService(store, nil)

	_, err := svc.WithdrawByUser(context.Background(), 1, amt("75.00"))
	require.ErrorIs(t, err, ledger.ErrInsufficient)
	require.True(t, store.balance("1000000001").Equal(amt("50.00")))
	require.Empty(t, store.transactions())
}

func TestWithdrawSuspendedCustomerPathBlocked(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "50.00", ledger.StatusSuspended)
	svc := newService(store, nil)

	_, err := svc.WithdrawByUser(context.Background(), 1, amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrSuspended)

	// The administrative path skips the status check.
	balance, err := svc.WithdrawByAccount(context.Background(), "1000000001", amt("10.00"))
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("40.00")))
}

func TestWithdrawByAccountInsufficient(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "5.00", ledger.StatusActive)
	svc := newService(store, nil)

	_, err := svc.WithdrawByAccount(context.Background(), "1000000001", amt("5.01"))
	require.ErrorIs(t, err, ledger.ErrInsufficient)
	require.True(t, store.balance("1000000001").Equal(amt("5.00")))
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "100.00", ledger.StatusActive)
	store.addAccount("2000000002", 2, "0.00", ledger.StatusActive)
	inval := &recordingInvalidator{}
	svc := newService(store, inval)

	balance, err := svc.Transfer(context.Background(), 1, "2000000002", amt("40.00"))
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("60.00")))
	require.True(t, store.balance("1000000001").Equal(amt("60.00")))
	require.True(t, store.balance("2000000002").Equal(amt("40.00")))

	log := store.transactions()
	require.Len(t, log, 2)
	out, in := log[0], log[1]
	require.Equal(t, ledger.TypeTransferOut, out.Type)
	require.Equal(t, "1000000001", out.AccountNumber)
	require.NotNil(t, out.RelatedAccount)
	require.Equal(t, "2000000002", *out.RelatedAccount)
	require.True(t, out.BalanceAfter.Equal(amt("60.00")))
	require.Equal(t, ledger.TypeTransferIn, in.Type)
	require.Equal(t, "2000000002", in.AccountNumber)
	require.NotNil(t, in.RelatedAccount)
	require.Equal(t, "1000000001", *in.RelatedAccount)
	require.True(t, in.BalanceAfter.Equal(amt("40.00")))

	require.ElementsMatch(t, []int64{1, 2}, inval.users)
}

func TestTransferToOwnAccount(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "100.00", ledger.StatusActive)
	svc := newService(store, nil)

	_, err := svc.Transfer(context.Background(), 1, "1000000001", amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrSameAccount)
	require.True(t, store.balance("1000000001").Equal(amt("100.00")))
	require.Empty(t, store.transactions())
}

func TestTransferFailures(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "100.00", ledger.StatusActive)
	store.addAccount("2000000002", 2, "0.00", ledger.StatusSuspended)
	svc := newService(store, nil)

	_, err := svc.Transfer(context.Background(), 1, "3000000003", amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.Transfer(context.Background(), 99, "1000000001", amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.Transfer(context.Background(), 1, "2000000002", amt("10.00"))
	require.ErrorIs(t, err, ledger.ErrSuspended)

	_, err = svc.Transfer(context.Background(), 1, "2000000002", amt("999.00"))
	require.ErrorIs(t, err, ledger.ErrSuspended) // receiver status checked before sufficiency

	require.True(t, store.balance("1000000001").Equal(amt("100.00")))
	require.Empty(t, store.transactions())
}

func TestTransferInsufficient(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "30.00", ledger.StatusActive)
	store.addAccount("2000000002", 2, "0.00", ledger.StatusActive)
	svc := newService(store, nil)

	_, err := svc.Transfer(context.Background(), 1, "2000000002", amt("30.01"))
	require.ErrorIs(t, err, ledger.ErrInsufficient)
	require.True(t, store.balance("1000000001").Equal(amt("30.00")))
	require.True(t, store.balance("2000000002").Equal(amt("0.00")))
	require.Empty(t, store.transactions())
}

// Two concurrent opposite-direction transfers must both commit, each applied
// exactly once, without deadlocking. The fixed lock order keyed by account
// number is what makes this safe.
func TestOppositeTransfersCommitWithoutDeadlock(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "100.00", ledger.StatusActive)
	store.addAccount("2000000002", 2, "100.00", ledger.StatusActive)
	svc := newService(store, nil)

	const rounds = 50
	errs := make(chan error, 2*rounds)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), 1, "2000000002", amt("0.10"))
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), 2, "1000000001", amt("0.25"))
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Net effect of both directions applied exactly once per round.
	require.True(t, store.balance("1000000001").Equal(amt("107.50")))
	require.True(t, store.balance("2000000002").Equal(amt("92.50")))
	require.Len(t, store.transactions(), 4*rounds)
}

func TestBalanceEqualsSumOfLog(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "25.00", ledger.StatusActive)
	store.addAccount("2000000002", 2, "0.00", ledger.StatusActive)
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "1000000001", amt("75.00"))
	require.NoError(t, err)
	_, err = svc.WithdrawByUser(ctx, 1, amt("20.00"))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, 1, "2000000002", amt("30.00"))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, 2, "1000000001", amt("5.00"))
	require.NoError(t, err)

	expect := map[string]decimal.Decimal{
		"1000000001": amt("25.00"),
		"2000000002": amt("0.00"),
	}
	for _, tr := range store.transactions() {
		switch tr.Type {
		case ledger.TypeDeposit, ledger.TypeTransferIn:
			expect[tr.AccountNumber] = expect[tr.AccountNumber].Add(tr.Amount)
		case ledger.TypeWithdraw, ledger.TypeTransferOut:
			expect[tr.AccountNumber] = expect[tr.AccountNumber].Sub(tr.Amount)
		}
		require.True(t, expect[tr.AccountNumber].Equal(tr.BalanceAfter),
			"balance_after mismatch for tx %d", tr.ID)
		require.False(t, expect[tr.AccountNumber].IsNegative())
	}
	for number, want := range expect {
		require.True(t, store.balance(number).Equal(want))
	}
}

func TestHistoryPaging(t *testing.T) {
	store := newMemStore()
	store.addAccount("1000000001", 1, "0.00", ledger.StatusActive)
	svc := newService(store, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Deposit(ctx, "1000000001", amt("1.00"))
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Greater(t, page[0].ID, page[1].ID)

	rest, err := svc.History(ctx, 1, 200, 2)
	require.NoError(t, err)
	require.Len(t, rest, 3)

	_, err = svc.History(ctx, 1, 0, 0)
	require.ErrorIs(t, err, ledger.ErrInvalidPage)
	_, err = svc.History(ctx, 1, 201, 0)
	require.ErrorIs(t, err, ledger.ErrInvalidPage)
	_, err = svc.History(ctx, 1, 10, -1)
	require.ErrorIs(t, err, ledger.ErrInvalidPage)
}
