package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  status <user_id>   strike counter and block status of a user
  rules              active moderation rules
  rooms              rooms currently marked active`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal(err, "Invalid configuration")
	}
	logx.InitGlobalLogger(cfg.IsDevelopment(), "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.OpenPostgres(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open PostgreSQL")
	}
	rdb, err := storage.OpenRedis(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open Redis")
	}
	defer rdb.Close()
	s := storage.NewStorageService(db, rdb)

	switch os.Args[1] {
	case "status":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin status <user_id>")
			os.Exit(1)
		}
		err = printStatus(ctx, s, os.Args[2])
	case "rules":
		err = printRules(ctx, s)
	case "rooms":
		err = printRooms(ctx, s)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		logx.Fatal(err, "Command failed", "command", os.Args[1])
	}
}

func printStatus(ctx context.Context, s storage.Storage, userID string) error {
	counter, err := s.GetStrikeCounter(ctx, userID)
	if err != nil {
		return err
	}
	block, err := s.GetBlock(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("User: %s\n", userID)
	if counter == nil {
		fmt.Println("Strikes: none recorded")
	} else {
		fmt.Printf("Strikes: %d (last %s)\n", counter.StrikeCount, counter.LastStrikeAt.Format(time.RFC3339))
		fmt.Printf("Total blocks: %d\n", counter.TotalBlocks)
	}
	if block == nil {
		fmt.Println("Blocked: no")
	} else {
		fmt.Printf("Blocked: until %s (%s left), reason: %s\n",
			block.ExpiresAt.Format(time.RFC3339),
			time.Until(block.ExpiresAt).Round(time.Second),
			block.Reason,
		)
	}
	return nil
}

func printRules(ctx context.Context, s storage.Storage) error {
	rules, err := s.GetActiveRules(ctx)
	if err != nil {
		return err
	}
	for _, r := range rules {
		fmt.Printf("#%d %-20s %s [%s]\n", r.ID, r.Type, r.Message, strings.Join(r.Words, ", "))
	}
	fmt.Printf("%d active rules\n", len(rules))
	return nil
}

func printRooms(ctx context.Context, s storage.Storage) error {
	ids, err := s.GetActiveRoomIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("%d active rooms\n", len(ids))
	return nil
}
