package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/script-runner/internal/services/queue"
	pkgqueue "github.com/jwebster45206/script-runner/pkg/queue"
)

const sampleScript = `# sample run enqueued by test-enqueue
loop 3:
  rest
`

func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	character := "test-character"
	if len(os.Args) > 1 {
		character = os.Args[1]
	}
	script := sampleScript
	if len(os.Args) > 2 {
		data, err := os.ReadFile(os.Args[2])
		if err != nil {
			log.Fatal("Failed to read script:", err)
		}
		script = string(data)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := queue.NewClient(redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	fmt.Println("Connected to Redis successfully!")

	ctx := context.Background()
	runQueue := queue.NewRunQueue(client, logger)

	req := &pkgqueue.Request{
		RequestID:  uuid.New().String(),
		Character:  character,
		Script:     script,
		EnqueuedAt: time.Now(),
	}
	if err := runQueue.EnqueueRequest(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("✅ Enqueued run request %s for %s\n", req.RequestID, character)

	depth, err := runQueue.RequestQueueDepth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\n📊 Queue depth: %d requests\n", depth)
	fmt.Println("\n💡 Now start the worker to see it process these requests!")
	fmt.Println("   Run: go run ./cmd/worker")
}
