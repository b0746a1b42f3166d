// Package services holds the marketplace business logic. Controllers call
// services; services call repositories and fire events on the bus once their
// transaction has committed.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/jobs"
	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/event"
	"github.com/rrnagar/marketplace/pkg/notification"
	"github.com/rrnagar/marketplace/pkg/queue"
	"github.com/rrnagar/marketplace/pkg/sse"
	"github.com/rrnagar/marketplace/pkg/storage"
	"github.com/rrnagar/marketplace/pkg/workerpool"
	"github.com/rrnagar/marketplace/pkg/ws"
)

// Deps are the collaborators shared by every service. Zero fields get
// working defaults, which is what the tests rely on.
type Deps struct {
	DB      *gorm.DB
	Bus     *event.Bus
	Hub     *ws.Hub
	Events  *sse.Broker
	Queue   *queue.Manager
	Disk    storage.Disk
	Pool    *workerpool.Pool
	Limiter cache.Limiter
}

type Services struct {
	db     *gorm.DB
	bus    *event.Bus
	hub    *ws.Hub
	events *sse.Broker
	queue  *queue.Manager
	notify *notification.Dispatcher

	Config        *ConfigService
	OTP           *OTPService
	Customers     *CustomerService
	Catalog       *CatalogService
	Orders        *OrderService
	Suppliers     *SupplierService
	Admins        *AdminService
	Feed          *FeedService
	Content       *ContentService
	Subscriptions *SubscriptionService
	Analytics     *AnalyticsService
	Uploads       *UploadService
	Translate     *TranslateService
}

func New(d Deps) *Services {
	if d.Bus == nil {
		d.Bus = event.NewBus()
	}
	if d.Hub == nil {
		d.Hub = ws.NewHub()
	}
	if d.Events == nil {
		d.Events = sse.NewBroker()
	}
	if d.Queue == nil {
		d.Queue = queue.Default()
	}
	if d.Disk == nil {
		d.Disk = storage.Default()
	}
	if d.Pool == nil {
		d.Pool = workerpool.New("thumbnails", 2)
	}
	if d.Limiter == nil {
		d.Limiter = cache.NewLimiter("otp:")
	}
	jobs.Register(d.Queue)

	s := &Services{
		db:     d.DB,
		bus:    d.Bus,
		hub:    d.Hub,
		events: d.Events,
		queue:  d.Queue,
		notify: notification.NewDispatcher(),
	}
	s.Config = NewConfigService(d.DB)
	s.OTP = &OTPService{db: d.DB, queue: d.Queue, limiter: d.Limiter}
	s.Customers = &CustomerService{db: d.DB}
	s.Catalog = &CatalogService{db: d.DB}
	s.Orders = &OrderService{db: d.DB, bus: d.Bus, config: s.Config}
	s.Suppliers = &SupplierService{db: d.DB, bus: d.Bus}
	s.Admins = &AdminService{db: d.DB}
	s.Feed = &FeedService{db: d.DB}
	s.Content = &ContentService{db: d.DB}
	s.Subscriptions = &SubscriptionService{db: d.DB}
	s.Analytics = &AnalyticsService{db: d.DB}
	s.Uploads = &UploadService{disk: d.Disk, pool: d.Pool}
	s.Translate = &TranslateService{}

	s.registerChannels()
	s.registerListeners()
	return s
}

// Bus is the event bus the services fire on.
func (s *Services) Bus() *event.Bus { return s.bus }

// Hub is the admin feed websocket hub.
func (s *Services) Hub() *ws.Hub { return s.hub }

// Events is the same feed as Hub, for EventSource clients.
func (s *Services) Events() *sse.Broker { return s.events }

// registerChannels wires the notification channels: "database" writes the
// admin feed and pushes it to websocket clients; "mail" and "sms" go
// through the queue.
func (s *Services) registerChannels() {
	feed := repositories.NewNotificationRepository(s.db)

	s.notify.Register("database", notification.ChannelFunc(func(ctx context.Context, to notification.Route, n notification.Notification) error {
		d, ok := n.(notification.Databaseable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Databaseable", n)
		}
		data := d.ToDatabase()
		row := &models.Notification{AdminID: to.AdminID, Type: data.Type, Title: data.Title, Message: data.Message}
		if len(data.Data) > 0 {
			raw, err := json.Marshal(data.Data)
			if err != nil {
				return err
			}
			row.Data = datatypes.JSON(raw)
		}
		if err := feed.Create(ctx, row); err != nil {
			return err
		}
		if err := s.events.Publish("notification", row); err != nil {
			return err
		}
		return s.hub.BroadcastJSON(map[string]any{"event": "notification", "data": row})
	}))

	s.notify.Register("mail", notification.ChannelFunc(func(ctx context.Context, to notification.Route, n notification.Notification) error {
		m, ok := n.(notification.Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		if to.Email == "" {
			return errors.New("notification: route has no email")
		}
		d := m.ToMail()
		return s.queue.Dispatch(ctx, jobs.MailJob, &jobs.SendMail{To: []string{to.Email}, Subject: d.Subject, HTML: d.HTML, Text: d.Text})
	}))

	s.notify.Register("sms", notification.ChannelFunc(func(ctx context.Context, to notification.Route, n notification.Notification) error {
		m, ok := n.(notification.SMSable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement SMSable", n)
		}
		if to.Phone == "" {
			return errors.New("notification: route has no phone")
		}
		return s.queue.Dispatch(ctx, jobs.SMSJob, &jobs.SendSMS{To: to.Phone, Message: m.ToSMS().Message})
	}))
}

// Maintenance

func (s *Services) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	return repositories.PurgeExpiredCodes(ctx, s.db, time.Now())
}

func (s *Services) ExpireSubscriptions(ctx context.Context) (int64, error) {
	return s.Subscriptions.ExpireLapsed(ctx, time.Now())
}

func (s *Services) RefreshConfig(ctx context.Context) error {
	return s.Config.Refresh(ctx)
}

var _ jobs.Maintenance = (*Services)(nil)

// Ping checks the database connection.
func (s *Services) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
