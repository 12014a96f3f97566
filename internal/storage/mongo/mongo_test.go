package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/mylist-service/internal/config"
	"github.com/pribylovaa/mylist-service/internal/cursor"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/storage"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testTimeout — общий дедлайн на операции с БД в тестах.
const testTimeout = 10 * time.Second

// TestMain запускает MongoDB в контейнере один раз на весь пакет тестов.
// Адрес контейнера прокидывается в ENV DATABASE_URL, а каждый тест
// создаёт свою БД с уникальным именем (см. newTestConfig).
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// newTestConfig создаёт конфиг с отдельной тестовой БД.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run mongo integration tests")
	}

	baseURL := os.Getenv("DATABASE_URL")
	if baseURL == "" {
		baseURL = "mongodb://localhost:27017"
	}

	dbName := "mylist_test_" + uuid.New().String()
	if baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL + dbName
	} else {
		baseURL = baseURL + "/" + dbName
	}

	return &config.Config{
		DB: config.DBConfig{URL: baseURL},
	}
}

// mustNewMongo создаёт подключение к тестовой БД и регистрирует очистку по завершении теста.
func mustNewMongo(t *testing.T, cfg *config.Config) *Mongo {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("cannot connect to MongoDB in container: %v (DATABASE_URL=%s)", err, cfg.DB.URL)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"mongodb://localhost:27017", defaultDBName},
		{"mongodb://localhost:27017/", defaultDBName},
		{"mongodb://localhost:27017/mylist_prod", "mylist_prod"},
		{"mongodb://u:p@h1,h2/app?replicaSet=rs0", "app"},
		{"::not a uri::", defaultDBName},
	}

	for _, tt := range tests {
		if got := databaseFromURI(tt.in); got != tt.want {
			t.Errorf("databaseFromURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_NilOrEmptyConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatalf("want error on nil config")
	}

	if _, err := New(context.Background(), &config.Config{}); err == nil {
		t.Fatalf("want error on empty DB.URL")
	}
}

// TestUpsertItem_CreatesOnceThenReturnsExisting — повторный upsert той же пары не создаёт дубль.
func TestUpsertItem_CreatesOnceThenReturnsExisting(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	in := models.ListItem{UserID: "u1", ContentID: "c1", ContentType: models.ContentMovie}

	first, created, err := m.UpsertItem(ctx, in)
	if err != nil {
		t.Fatalf("UpsertItem(first) error: %v", err)
	}

	if !created {
		t.Fatalf("first upsert must create")
	}

	if _, err := primitive.ObjectIDFromHex(first.ID); err != nil {
		t.Fatalf("ID is not an ObjectID hex: %q", first.ID)
	}

	if first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("CreatedAt must be set with ms precision, got %v", first.CreatedAt)
	}

	// Тип из второго вызова игнорируется: $setOnInsert.
	in.ContentType = models.ContentTVShow
	second, created, err := m.UpsertItem(ctx, in)
	if err != nil {
		t.Fatalf("UpsertItem(second) error: %v", err)
	}

	if created {
		t.Fatalf("second upsert must not create")
	}

	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) || second.ContentType != models.ContentMovie {
		t.Fatalf("second upsert must return existing item: first=%+v second=%+v", first, second)
	}

	n, err := m.CountItems(ctx, "u1")
	if err != nil {
		t.Fatalf("CountItems error: %v", err)
	}

	if n != 1 {
		t.Fatalf("CountItems = %d, want 1", n)
	}
}

// TestUpsertItem_Concurrent — параллельные upsert одной пары дают ровно один документ.
func TestUpsertItem_Concurrent(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, ok, err := m.UpsertItem(ctx, models.ListItem{UserID: "race", ContentID: "same", ContentType: models.ContentOther})
			if err != nil && !errors.Is(err, storage.ErrConflict) {
				t.Errorf("UpsertItem error: %v", err)
				return
			}

			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created=%d, want exactly 1", created)
	}

	n, err := m.CountItems(ctx, "race")
	if err != nil {
		t.Fatalf("CountItems error: %v", err)
	}

	if n != 1 {
		t.Fatalf("CountItems = %d, want 1", n)
	}
}

// TestListItems_PaginationAndOrder — порядок DESC и keyset-продолжение без пропусков и повторов.
func TestListItems_PaginationAndOrder(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	const total = 7
	for i := 0; i < total; i++ {
		if _, _, err := m.UpsertItem(ctx, models.ListItem{
			UserID:      "pager",
			ContentID:   fmt.Sprintf("c%d", i),
			ContentType: models.ContentMovie,
		}); err != nil {
			t.Fatalf("UpsertItem(%d) error: %v", i, err)
		}
	}

	// Чужой элемент не должен попасть в выдачу.
	if _, _, err := m.UpsertItem(ctx, models.ListItem{UserID: "other", ContentID: "c0", ContentType: models.ContentMovie}); err != nil {
		t.Fatalf("UpsertItem(other) error: %v", err)
	}

	seen := map[string]bool{}
	var (
		after *cursor.Cursor
		prev  *models.ListItem
	)

	for pages := 0; ; pages++ {
		if pages > total {
			t.Fatalf("pagination does not terminate")
		}

		items, err := m.ListItems(ctx, "pager", after, 3)
		if err != nil {
			t.Fatalf("ListItems error: %v", err)
		}

		if len(items) == 0 {
			break
		}

		for i := range items {
			it := items[i]
			if it.UserID != "pager" {
				t.Fatalf("foreign item in page: %+v", it)
			}

			if seen[it.ID] {
				t.Fatalf("duplicate item across pages: %s", it.ID)
			}
			seen[it.ID] = true

			if prev != nil && it.CreatedAt.After(prev.CreatedAt) {
				t.Fatalf("order DESC violated: %v THEN %v", prev.CreatedAt, it.CreatedAt)
			}
			prev = &items[i]
		}

		last := items[len(items)-1]
		oid, err := primitive.ObjectIDFromHex(last.ID)
		if err != nil {
			t.Fatalf("bad id: %v", err)
		}
		after = &cursor.Cursor{CreatedAt: last.CreatedAt, ID: oid}
	}

	if len(seen) != total {
		t.Fatalf("seen %d items, want %d", len(seen), total)
	}
}

func TestDeleteItem(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, _, err := m.UpsertItem(ctx, models.ListItem{UserID: "u", ContentID: "c", ContentType: models.ContentMovie}); err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}

	removed, err := m.DeleteItem(ctx, "u", "c")
	if err != nil || !removed {
		t.Fatalf("DeleteItem = (%v, %v), want (true, nil)", removed, err)
	}

	removed, err = m.DeleteItem(ctx, "u", "c")
	if err != nil || removed {
		t.Fatalf("second DeleteItem = (%v, %v), want (false, nil)", removed, err)
	}
}

// TestEnsureIndexes_Created — проверяем наличие уникального и списочного индексов.
func TestEnsureIndexes_Created(t *testing.T) {
	m := mustNewMongo(t, newTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	cur, err := m.items.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("Indexes().List error: %v", err)
	}
	defer cur.Close(ctx)

	var haveUnique, haveList bool

	for cur.Next(ctx) {
		var spec map[string]any
		if err := cur.Decode(&spec); err != nil {
			t.Fatalf("decode index spec: %v", err)
		}

		switch spec["name"] {
		case "user_content_unique":
			haveUnique = spec["unique"] == true
		case "user_created_desc":
			haveList = true
		}
	}

	if err := cur.Err(); err != nil {
		t.Fatalf("cursor err: %v", err)
	}

	if !haveUnique || !haveList {
		t.Fatalf("required indexes not found; unique=%v, list=%v", haveUnique, haveList)
	}
}
