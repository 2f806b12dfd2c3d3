package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

// q matches a statement fragment literally.
func q(fragment string) string { return regexp.QuoteMeta(fragment) }

const (
	decrementSQL = "UPDATE subscriptions SET remaining_entries = remaining_entries - 1 " +
		"WHERE id = ? AND organization_id = ? AND remaining_entries = ? AND remaining_entries > 0"
	insertCheckinSQL = "INSERT INTO checkins (id, user_id, organization_id, processed_by, location, checked_in_at, status)"
)

func validRow() *model.Checkin {
	staff := "staff-1"
	return &model.Checkin{
		ID: "chk-1", UserID: "u1", OrganizationID: "org-a", ProcessedBy: &staff,
		Location: "Empfang", CheckedInAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), Status: model.CheckinValid,
	}
}

func TestConsumeEntryDecrementsAndAuditsInOneTx(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q(decrementSQL)).WithArgs("sub-1", "org-a", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(insertCheckinSQL)).
		WithArgs("chk-1", "u1", "org-a", sqlmock.AnyArg(), "Empfang", sqlmock.AnyArg(), "valid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	left, err := NewCheckinRepo(db).ConsumeEntry(context.Background(), "org-a", "sub-1", 3, validRow())
	if err != nil {
		t.Fatal(err)
	}
	if left != 2 {
		t.Fatalf("left = %d, want 2", left)
	}
}

func TestConsumeEntryConflictWritesNothing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q(decrementSQL)).WithArgs("sub-1", "org-a", 3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := NewCheckinRepo(db).ConsumeEntry(context.Background(), "org-a", "sub-1", 3, validRow())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestConsumeEntryRollsBackWhenAuditFails(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q(decrementSQL)).WithArgs("sub-1", "org-a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(insertCheckinSQL)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := NewCheckinRepo(db).ConsumeEntry(context.Background(), "org-a", "sub-1", 1, validRow())
	if err == nil || errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want the insert failure", err)
	}
}

func TestGetRemainingEntries(t *testing.T) {
	db, mock := newMock(t)
	const sel = "SELECT remaining_entries FROM subscriptions WHERE id = ? AND organization_id = ?"
	mock.ExpectQuery(q(sel)).WithArgs("sub-1", "org-a").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_entries"}).AddRow(int64(4)))
	mock.ExpectQuery(q(sel)).WithArgs("sub-2", "org-a").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_entries"}).AddRow(nil))
	mock.ExpectQuery(q(sel)).WithArgs("sub-3", "org-a").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_entries"}))

	repo := NewCheckinRepo(db)
	ctx := context.Background()
	if n, err := repo.GetRemainingEntries(ctx, "org-a", "sub-1"); err != nil || n == nil || *n != 4 {
		t.Fatalf("counted: %v %v", n, err)
	}
	if n, err := repo.GetRemainingEntries(ctx, "org-a", "sub-2"); err != nil || n != nil {
		t.Fatalf("uncounted: %v %v", n, err)
	}
	if _, err := repo.GetRemainingEntries(ctx, "org-a", "sub-3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

const completeSQL = "UPDATE transactions SET status = 'completed', tse_data = ? " +
	"WHERE id = ? AND organization_id = ? AND status = 'pending'"

func TestCompletePendingOnlyFromPending(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q(completeSQL)).WithArgs(sqlmock.AnyArg(), "txn_9", "org-a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(completeSQL)).WithArgs(nil, "txn_9", "org-a").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTransactionRepo(db)
	ok, err := repo.CompletePending(context.Background(), "org-a", "txn_9", &model.FiscalSignature{SignatureValue: "sig"})
	if err != nil || !ok {
		t.Fatalf("first: %v %v", ok, err)
	}
	// already completed: no row matches the pending guard
	ok, err = repo.CompletePending(context.Background(), "org-a", "txn_9", nil)
	if err != nil || ok {
		t.Fatalf("second: %v %v", ok, err)
	}
}

func TestAttachSignatureOnlyWhenUnsigned(t *testing.T) {
	db, mock := newMock(t)
	const attach = "UPDATE transactions SET tse_data = ? " +
		"WHERE id = ? AND organization_id = ? AND status = 'completed' AND tse_data IS NULL"
	mock.ExpectExec(q(attach)).WithArgs(sqlmock.AnyArg(), "txn_9", "org-a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(attach)).WithArgs(sqlmock.AnyArg(), "txn_9", "org-a").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTransactionRepo(db)
	sig := model.FiscalSignature{SignatureValue: "sig", TransactionNumber: 11}
	if ok, err := repo.AttachSignature(context.Background(), "org-a", "txn_9", sig); err != nil || !ok {
		t.Fatalf("first: %v %v", ok, err)
	}
	if ok, err := repo.AttachSignature(context.Background(), "org-a", "txn_9", sig); err != nil || ok {
		t.Fatalf("second: %v %v", ok, err)
	}
}

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "total_amount", "payment_method", "items", "status", "tse_data", "created_at", "updated_at",
	})
}

func TestGetByIDDecodesSignature(t *testing.T) {
	db, mock := newMock(t)
	const sel = "FROM transactions WHERE id = ? AND organization_id = ?"
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	items := `[{"name":"Drop-in","price":"12.50","quantity":1,"vat_rate":"19"}]`
	mock.ExpectQuery(q(sel)).WithArgs("txn_1", "org-a").WillReturnRows(transactionRows().
		AddRow("txn_1", "org-a", "12.50", "card", items, "completed", `{"transaction_number":11,"signature_value":"sig"}`, now, now))
	mock.ExpectQuery(q(sel)).WithArgs("txn_2", "org-a").WillReturnRows(transactionRows().
		AddRow("txn_2", "org-a", "5.00", "cash", "[]", "completed", "null", now, now))
	mock.ExpectQuery(q(sel)).WithArgs("txn_3", "org-a").WillReturnRows(transactionRows().
		AddRow("txn_3", "org-a", "5.00", "cash", nil, "pending", nil, now, now))
	mock.ExpectQuery(q(sel)).WithArgs("txn_4", "org-a").WillReturnRows(transactionRows())

	repo := NewTransactionRepo(db)
	ctx := context.Background()

	tx, err := repo.GetByID(ctx, "org-a", "txn_1")
	if err != nil {
		t.Fatal(err)
	}
	if tx.TSEData == nil || tx.TSEData.TransactionNumber != 11 || len(tx.Items) != 1 || !tx.TotalAmount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("txn_1 = %+v", tx)
	}
	if tx.Items[0].VATRate == nil || !tx.Items[0].VATRate.Equal(decimal.NewFromInt(19)) {
		t.Fatalf("vat = %v", tx.Items[0].VATRate)
	}
	if tx, err = repo.GetByID(ctx, "org-a", "txn_2"); err != nil || tx.TSEData != nil {
		t.Fatalf("json null: %+v %v", tx, err)
	}
	if tx, err = repo.GetByID(ctx, "org-a", "txn_3"); err != nil || tx.TSEData != nil || tx.Items != nil {
		t.Fatalf("sql null: %+v %v", tx, err)
	}
	if _, err = repo.GetByID(ctx, "org-a", "txn_4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

const updatePaymentSQL = "SET status = ?, method = ?, paid_at = ?, transaction_id = COALESCE(transaction_id, ?) " +
	"WHERE organization_id = ? AND mollie_payment_id = ?"

func paymentRecord() *model.PaymentRecord {
	txID := "txn_9"
	paid := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return &model.PaymentRecord{
		ID: "pay-1", OrganizationID: "org-a", ExternalID: "tr_123", Amount: decimal.RequireFromString("12.50"),
		Currency: "EUR", Status: model.PaymentPaid, PaidAt: &paid, TransactionID: &txID,
	}
}

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "mollie_payment_id", "amount", "currency", "status", "method", "paid_at",
		"transaction_id", "created_at", "updated_at",
	})
}

func TestUpdateStatusKeepsTransactionLink(t *testing.T) {
	db, mock := newMock(t)
	rec := paymentRecord()
	mock.ExpectExec(q(updatePaymentSQL)).
		WithArgs("paid", nil, sqlmock.AnyArg(), "txn_9", "org-a", "tr_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPaymentRepo(db).UpdateStatus(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusUnchangedRowIsNotAnError(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(q(updatePaymentSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM mollie_payments WHERE organization_id = ? AND mollie_payment_id = ?")).
		WithArgs("org-a", "tr_123").
		WillReturnRows(paymentRows().AddRow("pay-1", "org-a", "tr_123", "12.50", "EUR", "paid", nil, now, "txn_9", now, now))

	if err := NewPaymentRepo(db).UpdateStatus(context.Background(), paymentRecord()); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateStatusMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q(updatePaymentSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM mollie_payments WHERE organization_id = ? AND mollie_payment_id = ?")).
		WithArgs("org-a", "tr_123").
		WillReturnRows(paymentRows())

	if err := NewPaymentRepo(db).UpdateStatus(context.Background(), paymentRecord()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertPaymentDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO mollie_payments")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'org-a-tr_123'"})
	mock.ExpectExec(q("INSERT INTO mollie_payments")).
		WithArgs("pay-1", "org-a", "tr_123", sqlmock.AnyArg(), "EUR", "paid", nil, sqlmock.AnyArg(), "txn_9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPaymentRepo(db)
	if err := repo.Insert(context.Background(), paymentRecord()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if err := repo.Insert(context.Background(), paymentRecord()); err != nil {
		t.Fatal(err)
	}
}
