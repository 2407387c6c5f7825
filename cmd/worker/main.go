package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"schoolattend/internal/config"
	"schoolattend/internal/ledger"
	"schoolattend/internal/queue"
	"schoolattend/internal/store"
)

// Worker consumes attendance messages from the queue and mirrors them
// into the Postgres archive. The in-memory ledger in the API stays
// authoritative; the archive is the durable copy for reporting.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	archive := store.NewArchive(db.Client)
	if err := archive.EnsureSchema(ctx); err != nil {
		log.Fatalf("archive schema failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "schoolattend:marks")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeAttendance:
			var rec ledger.Record
			if err := json.Unmarshal(msg.Body, &rec); err != nil {
				log.Printf("bad attendance message: %v", err)
				continue
			}
			if err := archive.Insert(ctx, rec); err != nil {
				log.Printf("archive insert failed for %s: %v", rec.ID, err)
				continue
			}
			log.Printf("archived record %s (%s on %s)", rec.ID, rec.StudentName, rec.Date)

		case queue.TypePurge:
			studentID := string(msg.Body)
			if err := archive.RemoveForStudent(ctx, studentID); err != nil {
				log.Printf("archive purge failed for %s: %v", studentID, err)
				continue
			}
			log.Printf("purged archive records for student %s", studentID)
		}
	}

	log.Println("worker stopped")
}
