package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/minhyannv/ai-cli/pkg/chat"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/ui"
	"github.com/spf13/cobra"
)

const previewRunes = 40

func newConversationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show or delete saved conversations",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withService(cmd.Context(), func(svc *chat.Service, user *store.User) error {
				return app.listConversations(cmd.Context(), svc, user, limit)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of conversations")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withService(cmd.Context(), func(svc *chat.Service, user *store.User) error {
				return app.showConversation(cmd.Context(), svc, user, args[0])
			})
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withService(cmd.Context(), func(svc *chat.Service, user *store.User) error {
				return app.deleteConversation(cmd.Context(), svc, user, args[0], yes)
			})
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(list, show, del)
	return cmd
}

// withService opens the store, authenticates and runs fn.
func (a *App) withService(ctx context.Context, fn func(*chat.Service, *store.User) error) error {
	repo, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	user, err := a.authenticate(ctx, repo)
	if err != nil {
		return err
	}
	return fn(chat.NewService(repo, a.logger), user)
}

func (a *App) listConversations(ctx context.Context, svc *chat.Service, user *store.User, limit int) error {
	convs, err := svc.UserConversations(ctx, user.ID, limit)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		ui.Dimf(a.out, "No conversations yet. Start one with `ai-cli wakeup`.")
		return nil
	}

	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		last := ""
		if c.LastMessage != nil {
			last = preview(c.LastMessage.Content, previewRunes)
		}
		rows = append(rows, []string{c.ID, string(c.Mode), c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"), last})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorAccent)).
		Headers("ID", "MODE", "TITLE", "UPDATED", "LAST MESSAGE").
		Rows(rows...)
	_, _ = fmt.Fprintln(a.out, t.Render())
	return nil
}

func (a *App) showConversation(ctx context.Context, svc *chat.Service, user *store.User, id string) error {
	conv, err := svc.Conversation(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", id)
		}
		return err
	}
	title := conv.Title
	if title == "" {
		title = chat.DefaultTitle(conv.Mode)
	}
	body := fmt.Sprintf("%s\nMode: %s\nID: %s", ui.Bold(title), conv.Mode, ui.Dim(conv.ID))
	_, _ = fmt.Fprintln(a.out, ui.Box("Conversation", body, ui.ColorAccent))
	if len(conv.Messages) == 0 {
		ui.Dimf(a.out, "No messages.")
		return nil
	}
	chat.ShowMessages(a.out, conv.Messages)
	return nil
}

func (a *App) deleteConversation(ctx context.Context, svc *chat.Service, user *store.User, id string, yes bool) error {
	if !yes {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Delete conversation %s?", id), false)
		if err != nil {
			return err
		}
		if !ok {
			ui.Warnf(a.out, "Delete cancelled")
			return nil
		}
	}
	if err := svc.DeleteConversation(ctx, id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", id)
		}
		return err
	}
	ui.Successf(a.out, "Conversation deleted")
	return nil
}

// preview flattens s to one line of at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
