package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/renkeyss/cch-bot/internal/analysis/intent"
	"github.com/renkeyss/cch-bot/internal/config"
	"github.com/renkeyss/cch-bot/internal/model/relay"
	"github.com/renkeyss/cch-bot/internal/service/backend"
	"github.com/renkeyss/cch-bot/internal/service/dispatch"
	"github.com/renkeyss/cch-bot/internal/service/exchange"
	"github.com/renkeyss/cch-bot/internal/service/quota"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	text := flag.String("text", "", "要发送的消息内容")
	user := flag.String("user", "asktester", "模拟的用户ID")
	repeat := flag.Int("repeat", 1, "重复发送次数，可用于验证每日配额")
	timeout := flag.Duration("timeout", cfg.Server.DispatchTimeout, "单条消息超时时间")

	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal("请通过 -text 指定消息内容")
	}
	if !cfg.AI.Enabled() {
		log.Printf("[WARN] %s 后端凭证不完整，回复将是错误提示", cfg.AI.Backend)
	}

	client, err := backend.New(context.Background(), cfg.AI, cfg.Messages)
	if err != nil {
		log.Fatalf("后端初始化失败: %v", err)
	}

	recorder := exchange.NewMemoryRecorder(*repeat)
	dispatcher := dispatch.New(
		intent.NewClassifier(cfg.Messages.IntroductionTriggers),
		quota.NewStore(cfg.Quota.DailyLimit),
		client,
		recorder,
		cfg.Messages,
	)

	for i := 0; i < *repeat; i++ {
		event := relay.InboundEvent{
			ID:         uuid.NewString(),
			UserID:     *user,
			Text:       *text,
			ReceivedAt: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		start := time.Now()
		result := dispatcher.Handle(ctx, event)
		cancel()

		fmt.Fprintf(os.Stdout, "#%d (%s)\n%s\n\n", i+1, time.Since(start).Round(time.Millisecond), result.ReplyText)
	}

	recent, err := recorder.Recent(context.Background(), *user, *repeat)
	if err != nil {
		log.Fatalf("读取记录失败: %v", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		log.Printf("[asktester] intent=%s outcome=%s", recent[i].Intent, recent[i].Outcome)
	}
}
