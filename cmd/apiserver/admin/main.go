package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"dm-go/internal/auth"
	"dm-go/internal/config"
	"dm-go/internal/crypto"
	"dm-go/internal/services"
	"dm-go/internal/storage/backend"
	"dm-go/internal/websocket"
)

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin threads <userID> [search]          - 列出用户的会话列表")
	fmt.Println("  ./admin thread <userID> <counterpartyID>   - 显示两个用户之间的消息")
	fmt.Println("  ./admin hash-password <password>           - 生成 bcrypt 密码哈希")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	if os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("生成密码哈希失败: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.LoadConfig(os.Getenv("DM_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	defer store.Close(ctx)

	cipher, err := crypto.NewCBCCipher(cfg.Crypto.MessageKey)
	if err != nil {
		log.Fatalf("无法初始化消息加密: %v", err)
	}

	// Nobody is online from the CLI's point of view and it never sends.
	messaging := services.NewMessagingService(store.Messages, store.Users, cipher, websocket.NewHub(), nil)

	user, err := store.Users.GetByID(ctx, os.Args[2])
	if err != nil {
		log.Fatalf("查找用户失败: %v", err)
	}
	caller := services.CallerContext{UserID: user.ID, Role: user.Role}

	switch os.Args[1] {
	case "threads":
		search := ""
		if len(os.Args) > 3 {
			search = os.Args[3]
		}
		listThreads(ctx, messaging, caller, search)

	case "thread":
		if len(os.Args) < 4 {
			log.Fatalf("需要指定对方用户ID")
		}
		showThread(ctx, messaging, caller, os.Args[3])

	default:
		usage()
		log.Fatalf("未知命令: %s", os.Args[1])
	}
}

func listThreads(ctx context.Context, messaging services.MessagingService, caller services.CallerContext, search string) {
	convos, err := messaging.GetAllThreads(ctx, caller, search, caller.IsAdmin())
	if err != nil {
		log.Fatalf("获取会话列表失败: %v", err)
	}

	fmt.Printf("用户 %s 的会话 (%d 个):\n", caller.UserID, len(convos))
	fmt.Println("--------------------------------------")
	for i, c := range convos {
		ts := "-"
		if c.Timestamp != nil {
			ts = c.Timestamp.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("#%d %s (%s) 最后消息: %q 时间: %s\n", i+1, c.Name, c.UserID, c.LastMessage, ts)
	}
}

func showThread(ctx context.Context, messaging services.MessagingService, caller services.CallerContext, counterpartyID string) {
	views, err := messaging.GetThread(ctx, caller, counterpartyID, caller.IsAdmin())
	if err != nil {
		log.Fatalf("获取消息失败: %v", err)
	}

	fmt.Printf("%s 与 %s 的消息 (%d 条):\n", caller.UserID, counterpartyID, len(views))
	fmt.Println("--------------------------------------")
	for _, v := range views {
		from := v.SenderID
		if v.Sender != nil {
			from = v.Sender.Name
		}
		body := v.Content
		switch {
		case v.Image != "":
			body = "[image] " + v.Image
		case v.PostID != "":
			body = "[post] " + v.PostID
		}
		fmt.Printf("%s %s: %s\n", v.Timestamp.Format("2006-01-02 15:04:05"), from, body)
	}
}
