package feedback

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcomms-feedback/src/actions/core"
	"github.com/stake-plus/govcomms-feedback/src/config"
	shareddiscord "github.com/stake-plus/govcomms-feedback/src/discord"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

var _ core.Module = (*Module)(nil)

// Module runs the discord side of the feedback bot.
type Module struct {
	config  *config.FeedbackConfig
	session *discordgo.Session
	handler *Handler
	tracker *ThreadTracker

	runtimeCtx context.Context
	cancel     context.CancelFunc
}

func NewModule(cfg *config.FeedbackConfig, ctrl *proposals.Controller) (*Module, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	tracker := NewThreadTracker(cfg.ForumChannelID)
	module := &Module{
		config:     cfg,
		session:    session,
		tracker:    tracker,
		handler:    NewHandler(cfg, ctrl, tracker),
		runtimeCtx: context.Background(),
	}
	module.initHandlers()
	return module, nil
}

// Name implements core.Module.
func (b *Module) Name() string { return "feedback" }

func (b *Module) initHandlers() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onThreadCreate)
	b.session.AddHandler(b.onThreadUpdate)
	b.session.AddHandler(b.onThreadDelete)
}

func (b *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("feedback: logged in as %s", r.User.Username)
	b.handler.SetBotID(r.User.ID)

	if err := shareddiscord.RegisterSlashCommands(s, b.config.GuildID, shareddiscord.CommandPostFeedback); err != nil {
		log.Printf("feedback: failed to register slash commands: %v", err)
	}

	go func() {
		if err := b.syncActiveThreads(); err != nil {
			log.Printf("feedback: initial thread sync failed: %v", err)
		}
	}()
}

func (b *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == shareddiscord.CommandPostFeedback {
			b.handler.HandleSlash(s, i)
		}
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == shareddiscord.FeedbackModalID {
			b.handler.HandleModal(b.runtimeCtx, s, i)
		}
	}
}

func (b *Module) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	b.handler.HandleReaction(b.runtimeCtx, s, r)
}

func (b *Module) onThreadCreate(_ *discordgo.Session, t *discordgo.ThreadCreate) {
	b.tracker.Observe(t.Channel)
}

func (b *Module) onThreadUpdate(_ *discordgo.Session, t *discordgo.ThreadUpdate) {
	b.tracker.Observe(t.Channel)
}

func (b *Module) onThreadDelete(_ *discordgo.Session, t *discordgo.ThreadDelete) {
	if t.Channel != nil {
		b.tracker.Forget(t.ID)
	}
}

func (b *Module) Start(ctx context.Context) error {
	b.runtimeCtx, b.cancel = context.WithCancel(ctx)
	if err := b.session.Open(); err != nil {
		b.cancel()
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (b *Module) Stop(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.session.Close(); err != nil {
		log.Printf("feedback: close session: %v", err)
	}
}

func (b *Module) syncActiveThreads() error {
	if b.config.GuildID == "" {
		return fmt.Errorf("guild id not configured")
	}
	threads, err := b.session.GuildThreadsActive(b.config.GuildID)
	if err != nil {
		return err
	}
	n := b.tracker.Seed(threads.Threads)
	log.Printf("feedback: tracking %d active forum threads", n)
	return nil
}
