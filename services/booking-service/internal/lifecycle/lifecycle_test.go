package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify/sms"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notify.Notification
	inner Notifier
}

func (r *recordingNotifier) Dispatch(ctx context.Context, n notify.Notification) notify.Result {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return r.inner.Dispatch(ctx, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type acceptingMail struct{}

func (acceptingMail) Send(context.Context, string, string, string) error { return nil }

type fakeGateway struct {
	intent payments.Intent
	err    error
}

func (f fakeGateway) PaymentIntent(context.Context, string) (payments.Intent, error) {
	return f.intent, f.err
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	notifier *recordingNotifier
	provider model.Provider
}

func newFixture(t *testing.T, gateway payments.Gateway) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New(storage.Policy{})
	provider, err := store.UpsertProvider(context.Background(), model.Provider{
		ID:           uuid.NewString(),
		Slug:         "acme",
		BusinessName: "Acme Dental",
		IsActive:     true,
	})
	require.NoError(t, err)

	rec := &recordingNotifier{inner: notify.NewDispatcher(sms.NewNoopSender(), acceptingMail{}, store, time.Second, logger)}
	svc := NewService(store, store, rec, gateway, Config{Fees: payments.FeePolicy{Percent: 10}}, logger, func() time.Time { return testNow })
	return fixture{svc: svc, store: store, notifier: rec, provider: provider}
}

func bookingRequest(date, at string) BookingRequest {
	return BookingRequest{
		ProviderID:    "acme",
		ScheduledDate: date,
		ScheduledTime: at,
		ServiceType:   "Cleaning",
		Customer:      CustomerInput{Name: "Jane Doe", Phone: "+15550100", Email: "jane@example.com"},
	}
}

func (f fixture) book(t *testing.T, date, at string) model.Appointment {
	t.Helper()
	b, err := f.svc.Create(context.Background(), bookingRequest(date, at), "")
	require.NoError(t, err)
	return b.Appointment
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from   model.AppointmentStatus
		action Action
		want   model.AppointmentStatus
		ok     bool
	}{
		{model.StatusPending, ActionConfirm, model.StatusConfirmed, true},
		{model.StatusConfirmed, ActionConfirm, "", false},
		{model.StatusConfirmed, ActionStart, model.StatusInProgress, true},
		{model.StatusPending, ActionStart, "", false},
		{model.StatusInProgress, ActionComplete, model.StatusCompleted, true},
		{model.StatusConfirmed, ActionComplete, "", false},
		{model.StatusInProgress, ActionCancel, model.StatusCancelled, true},
		{model.StatusCancelled, ActionCancel, "", false},
		{model.StatusCompleted, ActionCancel, "", false},
		{model.StatusPending, ActionNoShow, model.StatusNoShow, true},
		{model.StatusNoShow, ActionNoShow, "", false},
		{model.StatusConfirmed, ActionReschedule, model.StatusConfirmed, true},
		{model.StatusCancelled, ActionReschedule, "", false},
		{model.StatusPending, ActionRemind, model.StatusPending, true},
		{model.StatusCompleted, ActionRemind, "", false},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.action)
		if tc.ok {
			require.NoError(t, err, "%s from %s", tc.action, tc.from)
			assert.Equal(t, tc.want, got)
			continue
		}
		require.Error(t, err, "%s from %s", tc.action, tc.from)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	}

	_, err := Transition(model.StatusPending, Action("teleport"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, "2025-01-20", "10:00")

	got, err := f.svc.Get(context.Background(), f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-20", got.ScheduledDate)
	assert.Equal(t, "10:00", got.ScheduledTime)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
	assert.Equal(t, f.provider.ID, got.ProviderID)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "appointment.pending.v1", events[0].EventType)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := map[string]func(r *BookingRequest){
		"missing provider": func(r *BookingRequest) { r.ProviderID = "" },
		"bad date":         func(r *BookingRequest) { r.ScheduledDate = "20-01-2025" },
		"past date":        func(r *BookingRequest) { r.ScheduledDate = "2025-01-14" },
		"bad time":         func(r *BookingRequest) { r.ScheduledTime = "10am" },
		"outside hours":    func(r *BookingRequest) { r.ScheduledTime = "19:00" },
		"off the hour":     func(r *BookingRequest) { r.ScheduledTime = "10:30" },
		"missing name":     func(r *BookingRequest) { r.Customer.Name = " " },
		"missing phone":    func(r *BookingRequest) { r.Customer.Phone = "" },
		"bad email":        func(r *BookingRequest) { r.Customer.Email = "not-an-email" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := bookingRequest("2025-01-20", "10:00")
			mutate(&req)
			_, err := f.svc.Create(ctx, req, "")
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	req := bookingRequest("2025-01-20", "10:00")
	req.ProviderID = "nobody"
	_, err := f.svc.Create(ctx, req, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateInactiveProviderNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.store.UpsertProvider(context.Background(), model.Provider{ID: uuid.NewString(), Slug: "acme", BusinessName: "Acme Dental", IsActive: false})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), bookingRequest("2025-01-20", "10:00"), "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentCreatesSingleWinner(t *testing.T) {
	f := newFixture(t, nil)
	const n = 16

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := bookingRequest("2025-01-20", "10:00")
			req.Customer.Phone = "+1555010" + string(rune('a'+i))
			_, errs[i] = f.svc.Create(context.Background(), req, "")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	}
	assert.Equal(t, 1, wins)
}

func TestCreateIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, bookingRequest("2025-01-20", "10:00"), "key-1")
	require.NoError(t, err)
	again, err := f.svc.Create(ctx, bookingRequest("2025-01-20", "10:00"), "key-1")
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Appointment.ID, again.Appointment.ID)
}

func TestConfirmTwiceConflictsWithoutNotifying(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	out, err := f.svc.Confirm(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, out.Appointment.Status)
	require.NotNil(t, out.Notification)
	assert.True(t, out.Notification.SMS.Sent)
	require.NotNil(t, out.Notification.Email)
	assert.Equal(t, 1, f.notifier.count())

	_, err = f.svc.Confirm(ctx, f.provider.ID, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.notifier.count())

	got, err := f.svc.Get(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestCancelTwiceConflictsWithoutNotifying(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	_, err := f.svc.Cancel(ctx, f.provider.ID, appt.ID, "customer unavailable")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.provider.ID, appt.ID, "again")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.notifier.count())
}

func TestCancelWithReasonReportsNotification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	out, err := f.svc.Cancel(ctx, f.provider.ID, appt.ID, "customer unavailable")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, out.Appointment.Status)
	assert.Equal(t, "customer unavailable", out.Appointment.CancelReason)
	require.NotNil(t, out.Notification)
	assert.True(t, out.Notification.SMS.Sent)
	assert.Nil(t, out.Notification.Email)

	f.notifier.mu.Lock()
	last := f.notifier.sent[len(f.notifier.sent)-1]
	f.notifier.mu.Unlock()
	assert.Equal(t, notify.KindCancellation, last.Kind)
	assert.Equal(t, "customer unavailable", last.Details.Reason)
	assert.Equal(t, "Acme Dental", last.Details.BusinessName)

	events := f.store.Events()
	assert.Equal(t, "appointment.cancelled.v1", events[len(events)-1].EventType)
}

func TestCancelWithoutPhoneStillSucceeds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, err := f.store.CreateBooking(ctx, storage.NewBooking{
		Appointment: model.Appointment{
			ID:            uuid.NewString(),
			ProviderID:    f.provider.ID,
			ScheduledDate: "2025-01-20",
			ScheduledTime: "11:00",
			Status:        model.StatusPending,
			PaymentStatus: model.PaymentPending,
		},
		Customer: model.Customer{ID: uuid.NewString(), Name: "Walk In"},
	})
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, f.provider.ID, b.Appointment.ID, "customer unavailable")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, out.Appointment.Status)
	require.NotNil(t, out.Notification)
	assert.False(t, out.Notification.SMS.Sent)
	assert.Equal(t, notify.ErrNoPhone, out.Notification.SMS.Error)
}

func TestReasonRequired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	_, err := f.svc.Cancel(ctx, f.provider.ID, appt.ID, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Reschedule(ctx, f.provider.ID, appt.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, f.notifier.count())
}

func TestRescheduleLeavesStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")
	before := len(f.store.Events())

	out, err := f.svc.Reschedule(ctx, f.provider.ID, appt.ID, "dentist is out sick")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, out.Appointment.Status)
	require.NotNil(t, out.Notification)
	assert.True(t, out.Notification.SMS.Sent)
	assert.Len(t, f.store.Events(), before)
}

func TestReminderStampsSentAt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	out, err := f.svc.SendReminder(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Appointment.ReminderSentAt)
	assert.True(t, out.Appointment.ReminderSentAt.Equal(testNow))
	assert.True(t, out.Notification.SMS.Sent)
}

func TestVisitFlowWithoutNotifications(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	_, err := f.svc.Start(ctx, f.provider.ID, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Confirm(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	out, err := f.svc.Start(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, out.Appointment.Status)
	assert.Nil(t, out.Notification)
	out, err = f.svc.Complete(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, out.Appointment.Status)

	_, err = f.svc.MarkNoShow(ctx, f.provider.ID, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.notifier.count())
}

func TestOtherProviderIsForbidden(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")
	other := uuid.NewString()

	_, err := f.svc.Get(ctx, other, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.Confirm(ctx, other, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.Cancel(ctx, "", appt.ID, "x")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	err = f.svc.Delete(ctx, other, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.GetCustomer(ctx, other, appt.CustomerID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, 0, f.notifier.count())

	got, err := f.svc.Get(ctx, f.provider.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestMissingAppointmentNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Confirm(context.Background(), f.provider.ID, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteOnlyCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	err := f.svc.Delete(ctx, f.provider.ID, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Cancel(ctx, f.provider.ID, appt.ID, "customer unavailable")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.provider.ID, appt.ID))

	_, err = f.svc.Get(ctx, f.provider.ID, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	_, err := f.svc.Create(ctx, bookingRequest("2025-01-20", "10:00"), "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Cancel(ctx, f.provider.ID, appt.ID, "moved")
	require.NoError(t, err)
	f.book(t, "2025-01-20", "10:00")
}

func TestListAndCustomer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.book(t, "2025-01-21", "09:00")
	f.book(t, "2025-01-20", "10:00")
	_, err := f.svc.Confirm(ctx, f.provider.ID, a.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, f.provider.ID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2025-01-20", all[0].ScheduledDate)

	confirmed, err := f.svc.List(ctx, f.provider.ID, ListFilter{Status: "confirmed"})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, a.ID, confirmed[0].ID)

	_, err = f.svc.List(ctx, f.provider.ID, ListFilter{Status: "archived"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.List(ctx, f.provider.ID, ListFilter{From: "yesterday"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	cust, err := f.svc.GetCustomer(ctx, f.provider.ID, a.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", cust.Name)
}

func TestDecodeUpdateRequest(t *testing.T) {
	id, updates, err := DecodeUpdateRequest(strings.NewReader(`{"appointment_id":"a1","updates":{"notes":"bring x-rays","payment_status":"paid","total_amount_cents":4500}}`))
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
	require.Len(t, updates, 3)
	assert.Equal(t, SetNotes{Notes: "bring x-rays"}, updates[0])
	assert.Equal(t, SetPaymentStatus{PaymentStatus: model.PaymentPaid}, updates[1])
	require.IsType(t, SetTotalAmount{}, updates[2])
	assert.Equal(t, int64(4500), *updates[2].(SetTotalAmount).Cents)

	_, updates, err = DecodeUpdateRequest(strings.NewReader(`{"appointment_id":"a1","updates":{"total_amount_cents":null}}`))
	require.NoError(t, err)
	assert.Equal(t, []Update{SetTotalAmount{}}, updates)

	for _, body := range []string{
		`{"appointment_id":"a1","updates":{"status":"archived"}}`,
		`{"appointment_id":"a1","updates":{"payment_status":"refunded"}}`,
		`{"appointment_id":"a1","updates":{"provider_id":"someone-else"}}`,
		`{"appointment_id":"a1","updates":{}}`,
		`{"appointment_id":"a1","updates":{"total_amount_cents":-5}}`,
		`{"updates":{"notes":"x"}}`,
		`not json`,
	} {
		_, _, err := DecodeUpdateRequest(strings.NewReader(body))
		assert.True(t, apperr.Is(err, apperr.KindValidation), body)
	}
}

func TestDecodedNullClearsAmount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")
	cents := int64(4500)
	_, err := f.svc.Update(ctx, f.provider.ID, appt.ID, []Update{SetTotalAmount{Cents: &cents}})
	require.NoError(t, err)

	_, updates, err := DecodeUpdateRequest(strings.NewReader(`{"appointment_id":"a1","updates":{"notes":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, []Update{SetNotes{Notes: "x"}}, updates, "absent amount must not produce an update")

	_, updates, err = DecodeUpdateRequest(strings.NewReader(`{"appointment_id":"a1","updates":{"total_amount_cents": null }}`))
	require.NoError(t, err)
	got, err := f.svc.Update(ctx, f.provider.ID, appt.ID, updates)
	require.NoError(t, err)
	assert.Nil(t, got.TotalAmountCents)

	_, _, err = DecodeUpdateRequest(strings.NewReader(`{"appointment_id":"a1","updates":{"total_amount_cents":"4500"}}`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdateAppliesFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")
	before := len(f.store.Events())
	cents := int64(4500)

	got, err := f.svc.Update(ctx, f.provider.ID, appt.ID, []Update{
		SetNotes{Notes: "bring x-rays"},
		SetTotalAmount{Cents: &cents},
	})
	require.NoError(t, err)
	assert.Equal(t, "bring x-rays", got.Notes)
	require.NotNil(t, got.TotalAmountCents)
	assert.Equal(t, cents, *got.TotalAmountCents)
	assert.Len(t, f.store.Events(), before)

	got, err = f.svc.Update(ctx, f.provider.ID, appt.ID, []Update{SetStatus{Status: model.StatusCompleted}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Len(t, f.store.Events(), before+1)
	assert.Equal(t, 0, f.notifier.count())

	_, err = f.svc.Update(ctx, uuid.NewString(), appt.ID, []Update{SetNotes{Notes: "x"}})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestReconcilePayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")

	f.svc.payments = fakeGateway{intent: payments.Intent{ID: "pi_1", Status: "succeeded", AmountCents: 4500, AppointmentID: appt.ID}}
	out, err := f.svc.ReconcilePayment(ctx, f.provider.ID, appt.ID, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, out.Appointment.PaymentStatus)
	assert.Equal(t, "pi_1", out.Appointment.PaymentIntentID)
	require.NotNil(t, out.Appointment.TotalAmountCents)
	assert.Equal(t, int64(4500), *out.Appointment.TotalAmountCents)
	assert.Equal(t, int64(450), out.PlatformFeeCents)
	assert.Equal(t, int64(4050), out.ProviderNetCents)

	f.svc.payments = fakeGateway{intent: payments.Intent{ID: "pi_2", Status: "succeeded", AppointmentID: uuid.NewString()}}
	_, err = f.svc.ReconcilePayment(ctx, f.provider.ID, appt.ID, "pi_2")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	f.svc.payments = fakeGateway{err: io.ErrUnexpectedEOF}
	_, err = f.svc.ReconcilePayment(ctx, f.provider.ID, appt.ID, "pi_3")
	assert.True(t, apperr.Is(err, apperr.KindDependency))

	_, err = f.svc.ReconcilePayment(ctx, uuid.NewString(), appt.ID, "pi_1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestApplyPaymentIntent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "2025-01-20", "10:00")
	evt := storage.InboundEvent{ID: "stripe:evt_9", Type: "stripe.payment_intent.canceled"}

	got, err := f.svc.ApplyPaymentIntent(ctx, evt, payments.Intent{ID: "pi_9", Status: "canceled", AppointmentID: appt.ID})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, got.PaymentStatus)

	_, err = f.svc.ApplyPaymentIntent(ctx, evt, payments.Intent{ID: "pi_9", Status: "canceled", AppointmentID: appt.ID})
	assert.ErrorIs(t, err, storage.ErrDuplicateEvent)

	_, err = f.svc.ApplyPaymentIntent(ctx, storage.InboundEvent{ID: "stripe:evt_10"}, payments.Intent{ID: "pi_9", Status: "succeeded"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ApplyPaymentIntent(ctx, storage.InboundEvent{}, payments.Intent{ID: "pi_9", AppointmentID: appt.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ApplyPaymentIntent(ctx, storage.InboundEvent{ID: "stripe:evt_11"}, payments.Intent{ID: "pi_9", AppointmentID: uuid.NewString()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
