package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

// newTestDB opens a fresh in-memory sqlite database. A single connection
// serializes writers the way the postgres row locks do in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&types.AdminUser{},
		&types.AdminToken{},
		&types.Product{},
		&types.GroupOrder{},
		&types.Participant{},
		&types.ChatMessage{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recordingEmitter captures realtime messages for assertions.
type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) events() []realtime.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]realtime.SSEEvent, 0, len(e.msgs))
	for _, m := range e.msgs {
		out = append(out, m.Event)
	}
	return out
}

// testStack wires the full service graph over one test database.
type testStack struct {
	db           *gorm.DB
	log          *logger.Logger
	emitter      *recordingEmitter
	products     repos.ProductRepo
	groups       repos.GroupOrderRepo
	participants repos.ParticipantRepo
	messages     repos.ChatMessageRepo
	catalog      CatalogService
	ledger       ParticipantService
	orders       GroupOrderService
	proposals    ProposalService
	chat         ChatService
	payments     PaymentService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	log := testLogger(t)
	emitter := &recordingEmitter{}
	groupEvents := NewGroupNotifier(emitter)
	notifier := NewLogNotifier(log)

	productRepo := repos.NewProductRepo(db, log)
	groupRepo := repos.NewGroupOrderRepo(db, log)
	participantRepo := repos.NewParticipantRepo(db, log)
	messageRepo := repos.NewChatMessageRepo(db, log)

	catalog := NewCatalogService(db, log, productRepo)
	ledger := NewParticipantService(db, log, groupRepo, participantRepo, notifier, groupEvents)
	orders := NewGroupOrderService(db, log, catalog, groupRepo, ledger, notifier, groupEvents)
	proposals := NewProposalService(db, log, catalog, groupRepo, ledger, notifier, groupEvents, 7*24*time.Hour)
	chat := NewChatService(db, log, groupRepo, participantRepo, messageRepo, groupEvents)
	payments := NewPaymentService(db, log, groupRepo, participantRepo, []PaymentProvider{
		{
			Name:        "wave",
			URLTemplate: "https://pay.example.com/wave?amount={amount}&ref={reference}",
			PhoneNumber: "+221770000000",
		},
	}, notifier, groupEvents)

	return &testStack{
		db:           db,
		log:          log,
		emitter:      emitter,
		products:     productRepo,
		groups:       groupRepo,
		participants: participantRepo,
		messages:     messageRepo,
		catalog:      catalog,
		ledger:       ledger,
		orders:       orders,
		proposals:    proposals,
		chat:         chat,
		payments:     payments,
	}
}

func intPtr(v int) *int { return &v }

// seedProduct creates a group-buy product with the standard test tier ladder:
// base 10000, 9000 from 10 units, 8000 from 50 units.
func (ts *testStack) seedProduct(t *testing.T) *types.Product {
	t.Helper()
	product, err := ts.catalog.CreateProduct(context.Background(), &types.Product{
		Name:            "Sac de riz 25kg",
		BasePrice:       10000,
		Currency:        "XOF",
		GroupBuyEnabled: true,
		MinQty:          5,
		TargetQty:       50,
		PriceTiers: []types.PriceTier{
			{MinQty: 10, Price: 9000},
			{MinQty: 50, Price: 8000},
		},
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// seedOpenGroup creates a product and a direct group around it, returning
// both plus the creator's join result.
func (ts *testStack) seedOpenGroup(t *testing.T, qty int, mutate func(*types.Product)) (*types.Product, *JoinResult) {
	t.Helper()
	product := ts.seedProduct(t)
	if mutate != nil {
		mutate(product)
		updated, err := ts.catalog.UpdateProduct(context.Background(), product)
		if err != nil {
			t.Fatalf("update product: %v", err)
		}
		product = updated
	}
	result, err := ts.orders.CreateDirect(context.Background(), CreateGroupInput{
		ProductID:      product.ID,
		Actor:          Actor{Name: "Fatou Ndiaye", Phone: "+221 77 123 45 67"},
		Qty:            qty,
		Deadline:       time.Now().Add(72 * time.Hour),
		ShippingMethod: "pickup",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return product, result
}

func guest(name, phone string) Actor {
	return Actor{Name: name, Phone: phone}
}
