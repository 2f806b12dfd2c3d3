package service

import (
	"context"
	"errors"
	"testing"
)

func newTestFinalizer(store TransactionStore, signer Signer, pub UnsignedPublisher) *Finalizer {
	return NewFinalizer(quietLogger(), store, signer, pub, nil, 0)
}

func TestFinalizeSignsPendingTransactionOnce(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	signer := &fakeSigner{enabled: true}
	f := newTestFinalizer(store, signer, &fakePublisher{})

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeCompletedSigned {
		t.Fatalf("outcome = %+v", res)
	}
	first := store.get("txn_1")
	if first.Status != "completed" || first.TSEData == nil {
		t.Fatalf("transaction = %+v", first)
	}

	res, err = f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if res.Outcome != OutcomeSkipped || res.Reason != ReasonNotPending {
		t.Fatalf("second outcome = %+v", res)
	}
	second := store.get("txn_1")
	if second.Status != "completed" || *second.TSEData != *first.TSEData {
		t.Fatalf("transaction changed on second call: %+v", second)
	}
	if signer.callCount() != 1 || store.completes != 1 {
		t.Fatalf("signer calls = %d, completes = %d", signer.callCount(), store.completes)
	}
}

func TestFinalizeSignerOutageCompletesUnsigned(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	pub := &fakePublisher{}
	f := newTestFinalizer(store, &fakeSigner{enabled: true, err: errors.New("connection refused")}, pub)

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil {
		t.Fatalf("signer failure must not surface: %v", err)
	}
	if res.Outcome != OutcomeCompletedUnsigned || res.Reason != ReasonSignerError {
		t.Fatalf("outcome = %+v", res)
	}
	tx := store.get("txn_1")
	if tx.Status != "completed" || tx.TSEData != nil {
		t.Fatalf("transaction = %+v", tx)
	}
	if len(pub.events) != 1 || pub.events[0].TransactionID != "txn_1" || pub.events[0].OrganizationID != "org-a" {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestFinalizePublishFailureIsIgnored(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	pub := &fakePublisher{err: errors.New("broker down")}
	f := newTestFinalizer(store, &fakeSigner{enabled: true, err: errors.New("timeout")}, pub)

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil || res.Outcome != OutcomeCompletedUnsigned {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestFinalizeSignerDisabled(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	signer := &fakeSigner{enabled: false}
	pub := &fakePublisher{}
	f := newTestFinalizer(store, signer, pub)

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeCompletedUnsigned || res.Reason != ReasonSignerDisabled {
		t.Fatalf("outcome = %+v", res)
	}
	if signer.callCount() != 0 || len(pub.events) != 0 {
		t.Fatalf("signer calls = %d, events = %d", signer.callCount(), len(pub.events))
	}
}

func TestFinalizeOtherTenantIsSkipped(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	f := newTestFinalizer(store, &fakeSigner{enabled: true}, nil)

	res, err := f.Finalize(context.Background(), "txn_1", "org-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSkipped || res.Reason != ReasonNotFound {
		t.Fatalf("outcome = %+v", res)
	}
	if store.get("txn_1").Status != "pending" {
		t.Fatal("foreign tenant must not touch the transaction")
	}
}

func TestFinalizeMissingIDs(t *testing.T) {
	f := newTestFinalizer(newMemTransactions(), &fakeSigner{}, nil)
	res, err := f.Finalize(context.Background(), "", "org-a")
	if err != nil || res.Reason != ReasonMissingID {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestFinalizeStoreFailureIsReturned(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	store.completeErr = errors.New("deadlock")
	f := newTestFinalizer(store, &fakeSigner{enabled: true}, nil)

	if _, err := f.Finalize(context.Background(), "txn_1", "org-a"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestFinalizeHeldLockSkips(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	signer := &fakeSigner{enabled: true}
	f := NewFinalizer(quietLogger(), store, signer, nil, fakeLocker{held: true}, 0)

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil || res.Reason != ReasonInProgress {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if signer.callCount() != 0 || store.get("txn_1").Status != "pending" {
		t.Fatal("held lock must prevent finalization")
	}
}

func TestFinalizeLockErrorFallsBackToGuard(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	f := NewFinalizer(quietLogger(), store, &fakeSigner{enabled: true}, nil, fakeLocker{err: errors.New("redis down")}, 0)

	res, err := f.Finalize(context.Background(), "txn_1", "org-a")
	if err != nil || res.Outcome != OutcomeCompletedSigned {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestNilRedisLockerGrants(t *testing.T) {
	var l *RedisLocker
	release, ok, err := l.Acquire(context.Background(), finalizeLockKey("org-a", "txn_1"), 0)
	if err != nil || !ok {
		t.Fatalf("ok = %v, err = %v", ok, err)
	}
	release()
	if _, ok, _ := NewRedisLocker(nil).Acquire(context.Background(), "k", 0); !ok {
		t.Fatal("locker without client must grant")
	}
}

func TestResignAttachesSignatureOnce(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	signer := &fakeSigner{enabled: true, err: errors.New("unavailable")}
	f := newTestFinalizer(store, signer, nil)
	if res, _ := f.Finalize(context.Background(), "txn_1", "org-a"); res.Outcome != OutcomeCompletedUnsigned {
		t.Fatalf("setup outcome = %+v", res)
	}

	signer.err = nil
	res, err := f.Resign(context.Background(), "txn_1", "org-a")
	if err != nil || res.Outcome != OutcomeCompletedSigned {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if store.get("txn_1").TSEData == nil {
		t.Fatal("expected signature")
	}

	calls := signer.callCount()
	res, err = f.Resign(context.Background(), "txn_1", "org-a")
	if err != nil || res.Reason != ReasonAlreadySigned {
		t.Fatalf("second res = %+v, err = %v", res, err)
	}
	if signer.callCount() != calls {
		t.Fatal("signed transaction must not reach the signer again")
	}
}

func TestResignSkipsPendingAndReturnsSignerErrors(t *testing.T) {
	store := newMemTransactions(pendingTx("txn_1", "org-a"))
	signer := &fakeSigner{enabled: true}
	f := newTestFinalizer(store, signer, nil)

	res, err := f.Resign(context.Background(), "txn_1", "org-a")
	if err != nil || res.Reason != ReasonNotPending {
		t.Fatalf("pending: res = %+v, err = %v", res, err)
	}

	store.txs["txn_1"].Status = "completed"
	signer.err = errors.New("still down")
	if _, err := f.Resign(context.Background(), "txn_1", "org-a"); err == nil {
		t.Fatal("expected signer error to be returned")
	}
	if store.get("txn_1").TSEData != nil {
		t.Fatal("no signature expected")
	}
}

func TestResignAll(t *testing.T) {
	a, b, c := pendingTx("txn_a", "org-a"), pendingTx("txn_b", "org-a"), pendingTx("txn_c", "org-b")
	a.Status, b.Status, c.Status = "completed", "completed", "completed"
	store := newMemTransactions(a, b, c)
	f := newTestFinalizer(store, &fakeSigner{enabled: true}, nil)

	n, err := f.ResignAll(context.Background(), "org-a", 10)
	if err != nil || n != 2 {
		t.Fatalf("n = %d, err = %v", n, err)
	}
	if store.get("txn_c").TSEData != nil {
		t.Fatal("other tenant must not be signed")
	}
}
