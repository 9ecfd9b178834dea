package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
)

var (
	flagTitle        string
	flagDescription  string
	flagStartsAt     string
	flagParticipants []string
	flagPrevious     bool
	flagInvites      bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an instant meeting and print its link",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedClient()
		if err != nil {
			return err
		}
		var res meeting.StartResult
		if err := api.do("POST", "/api/meetings/start", map[string]string{
			"title":       flagTitle,
			"description": flagDescription,
		}, &res); err != nil {
			return err
		}
		fmt.Printf("meeting %s started\nlink: %s\n", res.MeetingID, res.Link)
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule a meeting and invite participants by email",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagTitle == "" || flagStartsAt == "" {
			return fmt.Errorf("--title and --at are required")
		}
		startsAt, err := time.Parse(time.RFC3339, flagStartsAt)
		if err != nil {
			return fmt.Errorf("--at must be RFC3339 (e.g. 2026-09-01T15:00:00Z): %w", err)
		}
		api, err := authedClient()
		if err != nil {
			return err
		}
		var m domain.Meeting
		if err := api.do("POST", "/api/meetings/schedule", map[string]any{
			"title":        flagTitle,
			"description":  flagDescription,
			"startsAt":     startsAt,
			"participants": flagParticipants,
		}, &m); err != nil {
			return err
		}
		fmt.Printf("meeting %s scheduled for %s\nlink: %s\n", m.ID, m.StartsAt.Local().Format(time.RFC1123), m.Link)
		return nil
	},
}

var meetingsCmd = &cobra.Command{
	Use:   "meetings",
	Short: "List upcoming meetings (or previous ones, or open invites)",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := authedClient()
		if err != nil {
			return err
		}
		path := "/api/meetings/upcoming"
		switch {
		case flagPrevious:
			path = "/api/meetings/previous"
		case flagInvites:
			path = "/api/meetings/invites"
		}
		var ms []domain.Meeting
		if err := api.do("GET", path, nil, &ms); err != nil {
			return err
		}
		if len(ms) == 0 {
			fmt.Println("nothing here")
			return nil
		}
		for _, m := range ms {
			printMeeting(m)
		}
		return nil
	},
}

func printMeeting(m domain.Meeting) {
	var names []string
	for _, p := range m.Participants {
		names = append(names, fmt.Sprintf("%s(%s)", p.User, p.Status))
	}
	status := ""
	if m.Ended {
		status = " [ended]"
	}
	fmt.Printf("%s  %s%s\n  at: %s\n  participants: %s\n",
		m.ID, m.Title, status,
		m.StartsAt.Local().Format(time.RFC1123),
		strings.Join(names, ", "))
}

func init() {
	for _, c := range []*cobra.Command{startCmd, scheduleCmd} {
		c.Flags().StringVar(&flagTitle, "title", "", "meeting title")
		c.Flags().StringVar(&flagDescription, "description", "", "meeting description")
	}
	scheduleCmd.Flags().StringVar(&flagStartsAt, "at", "", "start time, RFC3339")
	scheduleCmd.Flags().StringSliceVar(&flagParticipants, "invite", nil, "participant emails")
	meetingsCmd.Flags().BoolVar(&flagPrevious, "previous", false, "list past meetings")
	meetingsCmd.Flags().BoolVar(&flagInvites, "invites", false, "list pending invites")
}
