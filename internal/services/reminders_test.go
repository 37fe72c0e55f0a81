package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AnnixInvestments/annix-sub017/internal/cache"
	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

func TestSendDueReminders(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	views := new(MockCache)
	clock := clockwork.NewFakeClockAt(testNow)
	reminders := NewReminderService(f.access, f.notifier, views, clock)

	boq := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0011", Title: "Water reticulation"}
	p := supplierProfile(1)
	record := *pendingAccess(boq.ID, p.ID, capability.SectionFlanges)
	record.Boq = boq
	days := 3
	record.ReminderDays = &days

	f.access.On("FindDueReminders", mock.Anything, testNow).Return([]models.BoqSupplierAccess{record}, nil)
	f.suppliers.On("FindContacts", mock.Anything, []uuid.UUID{p.ID}).Return([]models.SupplierProfile{p}, nil)
	f.sender.On("SendReminderNotice", mock.Anything, recipient("s1@suppliers.example")).Return(nil)
	f.access.On("UpdateBatch", mock.Anything, mock.Anything).Return(nil)
	views.On("DeletePrefix", mock.Anything, cache.SupplierBoqKey(boq.ID, p.ID)).Return(nil)

	sent, err := reminders.SendDueReminders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.RemindersSent])
	views.AssertExpectations(t)
}

func TestSendDueRemindersNothingDue(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	reminders := NewReminderService(f.access, f.notifier, new(MockCache), clockwork.NewFakeClockAt(testNow))
	f.access.On("FindDueReminders", mock.Anything, testNow).Return([]models.BoqSupplierAccess{}, nil)

	sent, err := reminders.SendDueReminders(context.Background())
	require.NoError(t, err)
	require.Zero(t, sent)
	f.suppliers.AssertNotCalled(t, "FindContacts", mock.Anything, mock.Anything)
}

func TestSendDueRemindersQueryFailure(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	reminders := NewReminderService(f.access, f.notifier, new(MockCache), clockwork.NewFakeClockAt(testNow))
	f.access.On("FindDueReminders", mock.Anything, testNow).
		Return([]models.BoqSupplierAccess{}, errors.New("statement timeout"))

	_, err := reminders.SendDueReminders(context.Background())
	require.Error(t, err)
}
