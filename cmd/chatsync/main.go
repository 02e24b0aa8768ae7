package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coworkhq/chatsync/internal/chatapi"
	"github.com/coworkhq/chatsync/internal/chatsync"
	"github.com/coworkhq/chatsync/internal/config"
	"github.com/coworkhq/chatsync/internal/mirror"
	"github.com/coworkhq/chatsync/internal/realtime"
	"github.com/coworkhq/chatsync/internal/session"
)

func main() {
	configPath := flag.String("config", strings.TrimSpace(os.Getenv("CHATSYNC_CONFIG")), "config file path")
	email := flag.String("email", strings.TrimSpace(os.Getenv("CHATSYNC_EMAIL")), "sign-in email")
	password := flag.String("password", os.Getenv("CHATSYNC_PASSWORD"), "sign-in password")
	timeout := flag.Duration("timeout", durationEnv("CHATSYNC_TIMEOUT", 15*time.Second), "remote call timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	stateMirror, err := mirror.BuildMirrorFromDSN(cfg.MirrorDSN)
	if err != nil {
		log.Fatalf("failed to build mirror from %q: %v", cfg.MirrorDSN, err)
	}

	client := chatapi.NewClient(cfg.APIBaseURL, "", &http.Client{Timeout: *timeout})
	store := chatsync.NewStore(chatsync.StoreOptions{
		Mirror:   stateMirror,
		Client:   client,
		Sessions: session.NewManager(),
		Logger:   log.Default(),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.Restore()
	if store.IsAuthenticated() {
		log.Printf("restored session for user %d", store.CurrentIdentity().ID)
	} else if *email != "" {
		ctx, cancel := context.WithTimeout(rootCtx, *timeout)
		identity, signInErr := store.SignIn(ctx, *email, *password)
		cancel()
		if signInErr != nil {
			log.Fatalf("sign-in failed: %v", signInErr)
		}
		log.Printf("signed in as user %d in workspace %q", identity.ID, identity.WorkspaceName)
	} else {
		log.Fatalf("no restored session and no credentials (--email or CHATSYNC_EMAIL)")
	}

	for _, ch := range store.Channels() {
		ctx, cancel := context.WithTimeout(rootCtx, *timeout)
		store.FetchChannelMessages(ctx, ch.ID)
		cancel()
	}

	bridges := newBridgeRunner(rootCtx, store, log.Default())
	if err := bridges.start(cfg.EventsURL); err != nil {
		log.Fatalf("failed to start push bridge: %v", err)
	}

	if *configPath != "" {
		go func() {
			watchErr := config.Watch(rootCtx, *configPath, log.Default(), func(next config.Config) {
				log.Printf("config changed, reconnecting push bridge to %s", next.EventsURL)
				if restartErr := bridges.start(next.EventsURL); restartErr != nil {
					log.Printf("failed to restart push bridge: %v", restartErr)
				}
			})
			if watchErr != nil {
				log.Printf("config watch stopped: %v", watchErr)
			}
		}()
	}

	<-rootCtx.Done()
	bridges.stop()
	log.Printf("chatsync stopping: %v", rootCtx.Err())
}

// bridgeRunner owns the single active push bridge; starting a new one tears
// the previous one down first.
type bridgeRunner struct {
	ctx    context.Context
	store  *chatsync.Store
	logger *log.Logger

	mu      sync.Mutex
	current *realtime.Bridge
	cancel  context.CancelFunc
}

func newBridgeRunner(ctx context.Context, store *chatsync.Store, logger *log.Logger) *bridgeRunner {
	return &bridgeRunner{ctx: ctx, store: store, logger: logger}
}

func (r *bridgeRunner) start(eventsURL string) error {
	bridge, err := realtime.NewBridge(realtime.Options{
		EventsURL: eventsURL,
		Token:     r.store.Token(),
		Sink:      &loggingSink{store: r.store, logger: r.logger},
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.current != nil {
		r.current.Close()
	}
	bridgeCtx, cancel := context.WithCancel(r.ctx)
	r.current = bridge
	r.cancel = cancel
	r.mu.Unlock()
	go bridge.Run(bridgeCtx)
	return nil
}

func (r *bridgeRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.current != nil {
		r.current.Close()
	}
}

type loggingSink struct {
	store  *chatsync.Store
	logger *log.Logger
}

func (s *loggingSink) AppendMessage(channelID int64, msg chatsync.Message) {
	s.logger.Printf("new message in channel %d from %s", channelID, msg.SenderName)
	s.store.AppendMessage(channelID, msg)
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
