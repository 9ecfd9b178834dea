package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/peermesh"
	"github.com/ostrenko/confab/internal/wire"
)

var joinCmd = &cobra.Command{
	Use:   "join <meeting-id>",
	Short: "Join a meeting: connect signaling, mesh with the room, chat from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinMeeting(args[0])
	},
}

func joinMeeting(meetingID string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	api, err := authedClient()
	if err != nil {
		return err
	}

	var ice struct {
		STUNServers []string `json:"stunServers"`
	}
	if err := api.do("GET", "/api/ice", nil, &ice); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hooks := peermesh.Hooks{
		OnRoomUsers: func(users []wire.RoomUser) {
			fmt.Println("in the room:")
			for _, u := range users {
				fmt.Printf("  %s (%s)\n", u.Username, u.ID)
			}
		},
		OnUserJoined: func(u wire.UserJoined) {
			fmt.Printf("* %s joined\n", u.Username)
		},
		OnUserLeft: func(id string) {
			fmt.Printf("* %s left\n", id)
		},
		OnChat: func(m domain.ChatMessage) {
			fmt.Printf("<%s> %s\n", m.Author, m.Text)
		},
		OnChatUpdated: func(m domain.ChatMessage) {
			fmt.Printf("<%s> %s (edited)\n", m.Author, m.Text)
		},
		OnNotification: func(n wire.MeetingNotification) {
			fmt.Printf("! %s\n", n.Message)
		},
		OnMeetingEnded: func() {
			fmt.Println("* meeting ended by host")
			cancel()
		},
		OnServerError: func(msg string) {
			fmt.Fprintln(os.Stderr, "server:", msg)
		},
	}

	client := peermesh.NewClient(api.base, creds.Token, hooks)
	mesh := peermesh.NewMesh(creds.UserID, client, peermesh.NewPionFactory(ice.STUNServers))
	client.AttachMesh(mesh)

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.JoinMyRoom(); err != nil {
		return err
	}
	if err := client.JoinRoom(meetingID); err != nil {
		return err
	}
	fmt.Printf("joined meeting %s, type to chat, ctrl-c to leave\n", meetingID)

	go chatLoop(ctx, client, meetingID)

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// chatLoop ships stdin lines as chat messages, each with a fresh
// correlation id so the echo can be told apart from other traffic.
func chatLoop(ctx context.Context, client *peermesh.Client, meetingID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := client.SendChat(meetingID, text, uuid.NewString()); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}
}
