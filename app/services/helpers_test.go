package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/mail"
	"github.com/rrnagar/marketplace/pkg/queue"
	"github.com/rrnagar/marketplace/pkg/storage"
	"github.com/rrnagar/marketplace/pkg/testkit"
)

// outbox records mail sent through the queue.
type outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (o *outbox) Send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	o.msgs = append(o.msgs, m)
	o.mu.Unlock()
	return nil
}

func (o *outbox) to(addr string) []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []mail.Message
	for _, m := range o.msgs {
		for _, t := range m.To {
			if t == addr {
				out = append(out, m)
			}
		}
	}
	return out
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

// lastCode is the code in the newest mail to addr.
func (o *outbox) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msgs := o.to(addr)
	require.NotEmpty(t, msgs, "no mail to %s", addr)
	code := sixDigits.FindString(msgs[len(msgs)-1].Text)
	require.NotEmpty(t, code)
	return code
}

type fixture struct {
	svc  *Services
	db   *gorm.DB
	mail *outbox
	ctx  context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	cache.Use(cache.NewMemoryStore())

	db := testkit.DB(t, append(models.All(), &queue.FailedJob{})...)
	box := &outbox{}
	mail.Use(box)
	t.Cleanup(func() { mail.Use(mail.LogMailer{}) })

	q := queue.NewManager(nil)
	q.SetBackoff(func(int) time.Duration { return 0 })

	svc := New(Deps{
		DB:      db,
		Queue:   q,
		Disk:    storage.NewLocalDisk(t.TempDir(), "/uploads"),
		Limiter: cache.NewMemoryLimiter("otp:"),
	})
	return &fixture{svc: svc, db: db, mail: box, ctx: context.Background()}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) customer(t *testing.T, email string) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: "Asha", Email: ptr(email), Phone: "9876543210"}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) supplier(t *testing.T, email, status string) *models.Supplier {
	t.Helper()
	s := &models.Supplier{
		Name: "Ravi", BusinessName: "Ravi Stores", Email: email, Password: "x",
		Area: "RR Nagar", Status: status,
		Latitude: ptr(12.9260), Longitude: ptr(77.5190),
	}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func (f *fixture) product(t *testing.T, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Status: models.ProductActive, WeightKg: 1}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) offer(t *testing.T, productID, supplierID uint, price float64, stock int) *models.ProductSupplier {
	t.Helper()
	o := &models.ProductSupplier{ProductID: productID, SupplierID: supplierID, Price: price, Stock: stock, IsActive: true}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func (f *fixture) admin(t *testing.T, email, role string, approved bool) *models.Admin {
	t.Helper()
	a := &models.Admin{Name: "Admin", Email: email, Role: role}
	require.NoError(t, f.db.Create(a).Error)
	if approved {
		require.NoError(t, f.db.Model(a).Update("approved", true).Error)
		a.Approved = true
	}
	return a
}

func (f *fixture) feedCount(t *testing.T, typ string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("type = ?", typ).Count(&n).Error)
	return n
}
