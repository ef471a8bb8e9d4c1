package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/repository"
)

// Seeds a local cache database with plausible chats and messages so the UI
// gateway and CLI can be exercised without a running chat server.
func main() {
	dbPath := "dummy_chat.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Printf("Using database at: %s\n", dbPath)

	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Delete all messages but keep chats
	ctx := context.Background()
	if err := db.WithContext(ctx).Exec("DELETE FROM messages").Error; err != nil {
		log.Fatalf("Failed to delete messages: %v", err)
	}
	fmt.Println("Deleted all messages from database")

	if err := seedDummyData(db); err != nil {
		log.Fatalf("Failed to seed dummy data: %v", err)
	}

	fmt.Println("Successfully regenerated messages for all chats!")
	fmt.Printf("Database location: %s\n", dbPath)
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.ChatModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func seedDummyData(db *gorm.DB) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	me := domain.UserRef{ID: "u-me", Name: "Sam Porter"}

	peers := []domain.UserRef{
		{ID: "u-alice", Name: "Alice Johnson"},
		{ID: "u-bob", Name: "Bob Smith"},
		{ID: "u-charlie", Name: "Charlie Brown"},
		{ID: "u-diana", Name: "Diana Prince"},
		{ID: "u-eve", Name: "Eve Wilson"},
		{ID: "u-frank", Name: "Frank Miller"},
		{ID: "u-grace", Name: "Grace Lee"},
	}

	groupNames := []string{
		"Math 101",
		"Homework Help",
		"Teachers Lounge",
	}

	sampleTexts := []string{
		"Hey! How are you doing?",
		"Did you finish the assignment?",
		"Can we meet tomorrow?",
		"Thanks for your help!",
		"See you later!",
		"That sounds great!",
		"Let me know when you're free",
		"Perfect! I'll be there",
		"The deadline moved to Friday",
		"Have a great day!",
		"What time works for you?",
		"I'll send it over shortly",
		"Thanks for understanding",
		"Looking forward to it!",
		"Let's catch up soon",
		"Did you see the announcement?",
		"Can you share your notes?",
		"See you at the meeting",
		"Thanks again!",
		"Talk to you later!",
	}

	now := time.Now()
	chats := make([]*domain.Chat, 0, len(peers)+len(groupNames))

	for i, peer := range peers {
		chat := domain.NewDirectChat(fmt.Sprintf("chat-direct-%02d", i+1), []domain.UserRef{me, peer})
		chats = append(chats, chat)
	}

	for i, name := range groupNames {
		members := append([]domain.UserRef{me}, peers[:3+rng.Intn(4)]...)
		chat := domain.NewGroupChat(fmt.Sprintf("chat-group-%02d", i+1), name, members)
		chats = append(chats, chat)
	}

	chatRepo := repository.NewChatRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	ctx := context.Background()

	existingChats, err := chatRepo.GetAll(ctx, 100, 0)
	if err == nil && len(existingChats) > 0 {
		fmt.Printf("Found %d existing chats, will regenerate messages for them\n", len(existingChats))
		chats = existingChats
	} else {
		fmt.Println("No existing chats found, creating new chats...")
		for _, chat := range chats {
			if err := chatRepo.Upsert(ctx, chat); err != nil {
				return fmt.Errorf("failed to create chat %s: %w", chat.ID, err)
			}
		}
	}

	for _, chat := range chats {
		numMessages := 10 + rng.Intn(6)

		var lastMessage *domain.Message

		// Oldest to newest, starting 1-3 days back with 10-60 minute gaps.
		daysAgo := 1 + rng.Intn(3)
		messageTime := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)

		for j := 0; j < numMessages; j++ {
			if j > 0 {
				intervalMinutes := 10 + rng.Intn(50)
				messageTime = messageTime.Add(time.Duration(intervalMinutes) * time.Minute)
				if messageTime.After(now) {
					messageTime = now.Add(-time.Duration(rng.Intn(30)) * time.Minute)
				}
			}

			fromSelf := rng.Float32() < 0.4

			var sender domain.UserRef
			if fromSelf {
				sender = me
			} else {
				sender = pickPeer(rng, chat, me, peers)
			}

			msg := &domain.Message{
				ID:        uuid.NewString(),
				ChatID:    chat.ID,
				Sender:    sender,
				Body:      sampleTexts[rng.Intn(len(sampleTexts))],
				Kind:      domain.MessageKindText,
				CreatedAt: messageTime,
				FromSelf:  fromSelf,
				Status:    domain.StatusConfirmed,
			}

			if err := msgRepo.CreateOrIgnore(ctx, msg); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			lastMessage = msg
		}

		chat.LastMessageTime = lastMessage.CreatedAt
		chat.LastMessageText = lastMessage.Body
		if lastMessage.FromSelf {
			chat.LastMessageSender = "me"
		} else {
			chat.LastMessageSender = lastMessage.Sender.Name
		}

		if err := chatRepo.Upsert(ctx, chat); err != nil {
			return fmt.Errorf("failed to update chat %s: %w", chat.ID, err)
		}

		fmt.Printf("Created chat: %s (%s) with %d messages (last from %s)\n",
			chat.DisplayName(me.ID), chat.Type, numMessages, chat.LastMessageSender)
	}

	return nil
}

// pickPeer selects a non-self participant, falling back to a random peer for
// chats loaded from an earlier run without participant data.
func pickPeer(rng *rand.Rand, chat *domain.Chat, me domain.UserRef, peers []domain.UserRef) domain.UserRef {
	others := make([]domain.UserRef, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p.ID != me.ID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return peers[rng.Intn(len(peers))]
	}
	return others[rng.Intn(len(others))]
}
