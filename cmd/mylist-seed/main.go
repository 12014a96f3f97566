// mylist-seed наполняет список пользователя тестовыми элементами через сервисный слой,
// чтобы инвалидация кэша срабатывала так же, как в API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/mylist-service/internal/cache"
	"github.com/pribylovaa/mylist-service/internal/config"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/pkg/redact"
	"github.com/pribylovaa/mylist-service/internal/service"
	mlmongo "github.com/pribylovaa/mylist-service/internal/storage/mongo"
)

func main() {
	var (
		configPath string
		userID     string
		count      int
	)

	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.StringVar(&userID, "user", "", "user id to seed")
	flag.IntVar(&count, "count", 50, "number of items to add")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if userID == "" || count <= 0 {
		fmt.Fprintln(os.Stderr, "usage: mylist-seed --user <id> [--count N] [--config path]")
		os.Exit(2)
	}

	cfg := config.MustLoad(configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := mlmongo.New(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", "db", redact.URI(cfg.DB.URL), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = st.Close(context.Background()) }()

	// Версии сбрасываем только в общем Redis: memory-кэш живёт в процессе API.
	var store cache.Store = cache.Nop{}
	if cfg.Cache.Enabled() && cfg.Cache.Driver == config.CacheDriverRedis {
		r, err := cache.NewRedis(ctx, cfg.Cache.URL)
		if err != nil {
			log.Error("cache_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = r.Close() }()
		store = r
	}

	svc := service.New(st, store, *cfg)

	types := []models.ContentType{models.ContentMovie, models.ContentTVShow}
	created := 0

	for i := 0; i < count; i++ {
		res, err := svc.Add(ctx, service.AddInput{
			UserID:      userID,
			ContentID:   uuid.NewString(),
			ContentType: types[i%len(types)],
		})
		if err != nil {
			log.Error("seed_add_failed", "n", i, slog.String("err", err.Error()))
			os.Exit(1)
		}

		if res.Created {
			created++
		}
	}

	total, err := st.CountItems(ctx, userID)
	if err != nil {
		log.Error("seed_count_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("user=%s added=%d total=%d\n", userID, created, total)
}
