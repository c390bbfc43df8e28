package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"boardroom/internal/app"
	"boardroom/internal/domain"
	"boardroom/internal/engine"
	"boardroom/internal/persona"
	boardroomsdk "boardroom/sdk/go"
)

func chatCmd() *cobra.Command {
	var (
		ideaID, personaID string
		judge, noStream   bool
		remote, token     string
	)
	cmd := &cobra.Command{
		Use:   "chat <direct|routed|panel|gatekeeper> <message>",
		Short: "Run one conversation turn",
		Long: `Runs one turn against the workspace, or against a server with --remote.
Direct chats need --persona; gatekeeper turns need --idea. Pass --judge to force the verdict.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := domain.ParseMode(args[0])
			if !ok {
				return fmt.Errorf("unknown mode %q", args[0])
			}
			message := strings.Join(args[1:], " ")
			p := &turnPrinter{w: os.Stdout, json: viper.GetBool("json"), names: persona.Default().Name}

			if remote != "" {
				if token == "" {
					token = viper.GetString("token")
				}
				c := boardroomsdk.New(remote, token)
				_, err := c.Chat(cmd.Context(), string(mode), boardroomsdk.ChatRequest{
					Message:   message,
					IdeaID:    ideaID,
					PersonaID: personaID,
					Judge:     judge,
					NoStream:  noStream,
				}, p.remote)
				var turnErr *boardroomsdk.TurnError
				if errors.As(err, &turnErr) {
					return errors.New(turnErr.Message)
				}
				return err
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if ideaID != "" {
					if _, err := a.Repo.GetOwnedIdea(ctx, ideaID, viper.GetString("owner")); err != nil {
						return fmt.Errorf("idea %s: %w", ideaID, err)
					}
				}
				p.names = a.Personas.Name
				_, err := a.Engine.RunTurn(ctx, engine.TurnRequest{
					Mode:      mode,
					Message:   message,
					IdeaID:    ideaID,
					PersonaID: personaID,
					Judge:     judge,
					NoStream:  noStream,
				}, engine.SinkFunc(p.local))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&ideaID, "idea", "", "idea id")
	cmd.Flags().StringVar(&personaID, "persona", "", "persona id for direct chats")
	cmd.Flags().BoolVar(&judge, "judge", false, "force the gatekeeper verdict")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for whole replies")
	cmd.Flags().StringVar(&remote, "remote", "", "server URL, e.g. http://127.0.0.1:8080")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default $BOARDROOM_TOKEN)")
	return cmd
}

// turnPrinter renders turn events as they arrive, or as JSON lines with --json.
type turnPrinter struct {
	w     io.Writer
	json  bool
	names func(string) string
	last  string
}

func (p *turnPrinter) local(ev engine.Event) error {
	if p.json {
		return p.frame(ev.EventName(), ev)
	}
	switch e := ev.(type) {
	case engine.RouteEvent:
		p.route(e.PersonaID, e.Confidence, e.Path, e.Reasoning)
	case engine.FragmentEvent:
		p.fragment(e.PersonaID, e.Text)
	case engine.DoneEvent:
		verdict := ""
		if e.Verdict != nil {
			verdict = string(*e.Verdict)
		}
		p.done(verdict, len(e.TaskEffects))
	case engine.ErrorEvent:
		p.fail(e.Message)
	}
	return nil
}

func (p *turnPrinter) remote(ev boardroomsdk.Event) error {
	switch {
	case p.json:
		var data any
		switch {
		case ev.Route != nil:
			data = ev.Route
		case ev.Fragment != nil:
			data = ev.Fragment
		case ev.Done != nil:
			data = ev.Done
		case ev.Error != nil:
			data = ev.Error
		}
		return p.frame(ev.Name, data)
	case ev.Route != nil:
		p.route(ev.Route.PersonaID, ev.Route.Confidence, ev.Route.Path, ev.Route.Reasoning)
	case ev.Fragment != nil:
		p.fragment(ev.Fragment.PersonaID, ev.Fragment.Text)
	case ev.Done != nil:
		p.done(ev.Done.Verdict, len(ev.Done.TaskEffects))
	case ev.Error != nil:
		p.fail(ev.Error.Message)
	}
	return nil
}

func (p *turnPrinter) frame(name string, data any) error {
	return json.NewEncoder(p.w).Encode(map[string]any{"type": name, "data": data})
}

func (p *turnPrinter) route(personaID string, confidence float64, path, reasoning string) {
	fmt.Fprintf(p.w, "-> %s (%.0f%%, %s): %s\n", p.names(personaID), confidence*100, path, reasoning)
}

func (p *turnPrinter) fragment(personaID, text string) {
	if personaID != "" && personaID != p.last {
		if p.last != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintf(p.w, "\n[%s]\n", p.names(personaID))
		p.last = personaID
	}
	fmt.Fprint(p.w, text)
}

func (p *turnPrinter) done(verdict string, effects int) {
	fmt.Fprintln(p.w)
	if verdict != "" {
		fmt.Fprintf(p.w, "\nVerdict: %s\n", verdict)
	}
	if effects > 0 {
		fmt.Fprintf(p.w, "%d task change(s) recorded\n", effects)
	}
}

func (p *turnPrinter) fail(message string) {
	fmt.Fprintf(p.w, "\n[error] %s\n", message)
}
