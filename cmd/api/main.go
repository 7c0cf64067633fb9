package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/httpapi"
	"polyrec.org/internal/identity"
	"polyrec.org/internal/ledger"
	"polyrec.org/internal/obs"
	"polyrec.org/internal/records"
	"polyrec.org/internal/store/pg"
	"polyrec.org/internal/stream"
)

// Overridden at build time via -ldflags.
var (
	version = "0.3.1"
	commit  = ""
)

func main() {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("POLYREC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var (
		auditStore audit.Store
		idStore    identity.Store
		recStore   records.Store
		feeLedger  ledger.Service
		probe      httpapi.ReadyProbe
		pgStore    *pg.Store
	)
	if dsn := os.Getenv("POLYREC_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		auditStore = audit.NewPGStore(pgStore.DB())
		idStore = identity.NewPGStore(pgStore.DB())
		recStore = records.NewPGStore(pgStore.DB())
		feeLedger = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		// No DSN runs everything in memory, useful for demos and tests.
		log.Println("POLYREC_PG_DSN not set, using in-memory stores")
		sink := audit.NewInMemory()
		auditStore = sink
		idStore = identity.NewInMemory(sink)
		recStore = records.NewInMemory()
		feeLedger = ledger.NewInMemory(sink)
	}

	idsvc := identity.NewService(idStore)
	rsvc := records.NewService(recStore, feeLedger, auditStore)
	payments := stream.New()

	api := httpapi.New(probe, version, idsvc, rsvc, feeLedger, auditStore, payments)

	// Outermost first: RequestID must wrap Logging so log lines see the id.
	handler := httpapi.RateLimit(api.Handler(), 50, 25)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting polyrec-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
