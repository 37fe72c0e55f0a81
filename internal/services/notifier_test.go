package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/AnnixInvestments/annix-sub017/internal/capability"
	"github.com/AnnixInvestments/annix-sub017/internal/metrics"
	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/notification"
)

type notifierFixture struct {
	suppliers *MockSupplierRepository
	access    *MockAccessRepository
	sender    *MockSender
	metrics   *metrics.Metrics
	notifier  *Notifier
}

func newNotifierFixture(opts NotifierOptions) *notifierFixture {
	f := &notifierFixture{
		suppliers: new(MockSupplierRepository),
		access:    new(MockAccessRepository),
		sender:    new(MockSender),
		metrics:   metrics.NewMetrics(),
	}
	f.notifier = NewNotifier(f.suppliers, f.access, f.sender, capability.Default(), clockwork.NewFakeClockAt(testNow), f.metrics, opts)
	return f
}

func supplierProfile(i int) models.SupplierProfile {
	return models.SupplierProfile{
		ID:        uuid.New(),
		FirstName: "Sam",
		LastName:  fmt.Sprintf("Supplier%d", i),
		User:      &models.User{Email: fmt.Sprintf("s%d@suppliers.example", i)},
		Company:   &models.SupplierCompany{TradingName: fmt.Sprintf("Steelworks %d", i)},
	}
}

func recipient(email string) interface{} {
	return mock.MatchedBy(func(n notification.Notice) bool { return n.Recipient == email })
}

func TestNotifyDistributionIsolatesFailures(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	boq := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0001", Title: "Mine dewatering"}

	var profiles []models.SupplierProfile
	var records []models.BoqSupplierAccess
	for i := 1; i <= 5; i++ {
		p := supplierProfile(i)
		profiles = append(profiles, p)
		records = append(records, *pendingAccess(boq.ID, p.ID, capability.SectionFlanges))
	}

	f.suppliers.On("FindContacts", mock.Anything, mock.Anything).Return(profiles, nil).Once()
	f.sender.On("SendDistributionNotice", mock.Anything, recipient("s3@suppliers.example")).
		Return(errors.New("mailbox unavailable"))
	f.sender.On("SendDistributionNotice", mock.Anything, mock.Anything).Return(nil)

	var persisted []*models.BoqSupplierAccess
	f.access.On("UpdateBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).([]*models.BoqSupplierAccess)
		}).
		Return(nil).Once()

	count, err := f.notifier.NotifyDistribution(context.Background(), boq, records)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.Len(t, persisted, 4)

	for i, r := range records {
		if i == 2 {
			require.Nil(t, r.NotificationSentAt)
			continue
		}
		require.NotNil(t, r.NotificationSentAt)
		require.Equal(t, testNow, *r.NotificationSentAt)
	}
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.NotificationsFailed])
	require.Equal(t, int64(4), f.metrics.GetCounters()[metrics.NotificationsSent])
	f.sender.AssertNumberOfCalls(t, "SendDistributionNotice", 5)
}

func TestNotifySkipsSuppliersWithoutEmail(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	boq := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0002"}

	withEmail := supplierProfile(1)
	withoutEmail := supplierProfile(2)
	withoutEmail.User = nil
	missing := uuid.New()
	records := []models.BoqSupplierAccess{
		*pendingAccess(boq.ID, withEmail.ID, capability.SectionFlanges),
		*pendingAccess(boq.ID, withoutEmail.ID, capability.SectionFlanges),
		*pendingAccess(boq.ID, missing, capability.SectionFlanges),
	}

	f.suppliers.On("FindContacts", mock.Anything, []uuid.UUID{withEmail.ID, withoutEmail.ID, missing}).
		Return([]models.SupplierProfile{withEmail, withoutEmail}, nil)
	f.sender.On("SendDistributionNotice", mock.Anything, recipient("s1@suppliers.example")).Return(nil)
	f.access.On("UpdateBatch", mock.Anything, mock.Anything).Return(nil)

	count, err := f.notifier.NotifyDistribution(context.Background(), boq, records)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Nil(t, records[1].NotificationSentAt)
	require.Nil(t, records[2].NotificationSentAt)
	require.Equal(t, int64(2), f.metrics.GetCounters()[metrics.NotificationsSkipped])
	f.sender.AssertExpectations(t)
}

func TestNotifyContactLookupFailure(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	boq := &models.Boq{ID: uuid.New()}
	records := []models.BoqSupplierAccess{*pendingAccess(boq.ID, uuid.New(), capability.SectionFlanges)}

	f.suppliers.On("FindContacts", mock.Anything, mock.Anything).
		Return([]models.SupplierProfile{}, errors.New("connection reset"))

	count, err := f.notifier.NotifyDistribution(context.Background(), boq, records)
	require.Error(t, err)
	require.Equal(t, 0, count)
	f.sender.AssertNotCalled(t, "SendDistributionNotice", mock.Anything, mock.Anything)
	f.access.AssertNotCalled(t, "UpdateBatch", mock.Anything, mock.Anything)
}

func TestNotifyRecoversPanicsAndTimeouts(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{Timeout: 20 * time.Millisecond, Concurrency: 2})
	boq := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0003"}
	p1, p2, p3 := supplierProfile(1), supplierProfile(2), supplierProfile(3)
	records := []models.BoqSupplierAccess{
		*pendingAccess(boq.ID, p1.ID, capability.SectionFlanges),
		*pendingAccess(boq.ID, p2.ID, capability.SectionFlanges),
		*pendingAccess(boq.ID, p3.ID, capability.SectionFlanges),
	}

	f.suppliers.On("FindContacts", mock.Anything, mock.Anything).
		Return([]models.SupplierProfile{p1, p2, p3}, nil)
	f.sender.On("SendUpdateNotice", mock.Anything, recipient("s1@suppliers.example")).
		Panic("template exploded")
	f.sender.On("SendUpdateNotice", mock.Anything, recipient("s2@suppliers.example")).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)
	f.sender.On("SendUpdateNotice", mock.Anything, recipient("s3@suppliers.example")).Return(nil)
	f.access.On("UpdateBatch", mock.Anything, mock.MatchedBy(func(rs []*models.BoqSupplierAccess) bool {
		return len(rs) == 1 && rs[0].SupplierProfileID == p3.ID
	})).Return(nil)

	count, err := f.notifier.NotifyUpdate(context.Background(), boq, records)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NotNil(t, records[2].NotificationSentAt)
	f.access.AssertExpectations(t)
}

func TestNoticeProjectNameFallbacks(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	p := supplierProfile(1)
	p.Company = &models.SupplierCompany{LegalName: "Acme Piping (Pty) Ltd"}
	untitled := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0004"}
	record := pendingAccess(untitled.ID, p.ID, capability.SectionFlanges, capability.SectionGaskets)

	n := f.notifier.notice(untitled, record, &p, "New Project")
	require.Equal(t, "New Project", n.ProjectName)
	require.Equal(t, "Acme Piping (Pty) Ltd", n.SupplierName)
	require.Equal(t, []string{"Flanges", "Gaskets"}, n.SectionTitles)

	titled := &models.Boq{ID: untitled.ID, Title: "Smelter retrofit"}
	require.Equal(t, "Smelter retrofit", f.notifier.notice(titled, record, &p, "Project").ProjectName)

	record.ProjectInfo = datatypes.NewJSONType(&models.ProjectInfo{Name: "Kusile Unit 6"})
	require.Equal(t, "Kusile Unit 6", f.notifier.notice(titled, record, &p, "Project").ProjectName)

	p.Company = nil
	require.Equal(t, "Sam Supplier1", f.notifier.notice(titled, record, &p, "Project").SupplierName)
}

func TestNotifyReminderStampsReminderSentAt(t *testing.T) {
	f := newNotifierFixture(NotifierOptions{})
	boq := &models.Boq{ID: uuid.New(), BoqNumber: "BOQ-0005", Title: "Tailings line"}
	p := supplierProfile(1)
	record := *pendingAccess(boq.ID, p.ID, capability.SectionFlanges)
	record.Boq = boq

	f.suppliers.On("FindContacts", mock.Anything, []uuid.UUID{p.ID}).Return([]models.SupplierProfile{p}, nil)
	f.sender.On("SendReminderNotice", mock.Anything, mock.MatchedBy(func(n notification.Notice) bool {
		return n.ProjectName == "Tailings line" && n.BoqNumber == "BOQ-0005"
	})).Return(nil)
	f.access.On("UpdateBatch", mock.Anything, mock.MatchedBy(func(rs []*models.BoqSupplierAccess) bool {
		return len(rs) == 1 && rs[0].ReminderSentAt != nil && rs[0].NotificationSentAt == nil
	})).Return(nil)

	count, err := f.notifier.NotifyReminder(context.Background(), []models.BoqSupplierAccess{record})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, int64(1), f.metrics.GetCounters()[metrics.RemindersSent])
	f.sender.AssertExpectations(t)
	f.access.AssertExpectations(t)
}
