// Package flow is the per-user conversation state machine. It turns inbound
// chat events into session transitions, user notifications and job dispatches.
package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/intent"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/jobrunner"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/mediacache"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/messages"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/registry"
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/session"
)

const DefaultAcceptReaction = "👌"

// JobRunner executes a dispatched job. *jobrunner.Runner satisfies it.
type JobRunner interface {
	Run(ctx context.Context, job jobrunner.Job) jobrunner.Result
}

type Config struct {
	Store    session.Store
	Resolver intent.Resolver
	Notifier chat.Notifier
	Fetcher  chat.MediaFetcher
	Runner   JobRunner
	// Registry enables the one-time welcome message. Optional.
	Registry registry.Registry
	Messages *messages.Catalog
	Logger   *slog.Logger
	CacheDir string
	// OptionSteps lists the option questions per job type. A nil map uses
	// DefaultOptionSteps; a job type mapped to an empty list dispatches as
	// soon as the target arrives.
	OptionSteps    map[session.JobType][]session.OptionKey
	AcceptReaction string
	Now            func() time.Time
}

type Machine struct {
	store    session.Store
	resolver intent.Resolver
	notifier chat.Notifier
	fetcher  chat.MediaFetcher
	runner   JobRunner
	registry registry.Registry
	texts    *messages.Catalog
	logger   *slog.Logger
	cacheDir string
	steps    map[session.JobType][]session.OptionKey
	reaction string
	now      func() time.Time

	jobs sync.WaitGroup
}

func New(cfg Config) (*Machine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("missing session store")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("missing media fetcher")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("missing job runner")
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		return nil, fmt.Errorf("missing cache dir")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = intent.KeywordResolver{}
	}
	if cfg.Messages == nil {
		cfg.Messages = messages.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.OptionSteps == nil {
		cfg.OptionSteps = DefaultOptionSteps()
	}
	if strings.TrimSpace(cfg.AcceptReaction) == "" {
		cfg.AcceptReaction = DefaultAcceptReaction
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	steps := make(map[session.JobType][]session.OptionKey, len(cfg.OptionSteps))
	for jt, keys := range cfg.OptionSteps {
		steps[jt] = append([]session.OptionKey(nil), keys...)
	}
	return &Machine{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		notifier: cfg.Notifier,
		fetcher:  cfg.Fetcher,
		runner:   cfg.Runner,
		registry: cfg.Registry,
		texts:    cfg.Messages,
		logger:   cfg.Logger,
		cacheDir: cfg.CacheDir,
		steps:    steps,
		reaction: cfg.AcceptReaction,
		now:      cfg.Now,
	}, nil
}

// Wait blocks until every dispatched job has finished.
func (m *Machine) Wait() {
	m.jobs.Wait()
}

// Handle processes one inbound event. Dispatched jobs run under ctx, so it
// should be the long-lived runtime context. Returned errors are for logging;
// the user has already been told what happened.
func (m *Machine) Handle(ctx context.Context, ev chat.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if ev.UserID == "" {
		return session.ErrMissingOwner
	}
	if strings.TrimSpace(ev.ChatID) == "" {
		ev.ChatID = ev.UserID
	}
	welcomed := m.onboard(ctx, ev)

	cur, ok := m.store.Get(ev.UserID)
	text := strings.TrimSpace(ev.Text)

	if text != "" && intent.IsCancel(text) {
		return m.cancel(ctx, ev, cur, ok)
	}
	if ok && cur.State == session.StateDispatched {
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.Busy))
	}
	if ok && !cur.State.Collecting() {
		m.logger.Warn("flow_unexpected_state", "user_id", ev.UserID, "state", cur.State.String())
		m.store.Delete(ev.UserID)
		ok = false
	}

	if ok && cur.State == session.StateAwaitingOption && !ev.HasMedia() {
		if key, has := cur.CurrentOption(); has && applyOption(key, text, &cur.Options) {
			return m.advanceOption(ctx, ev, cur)
		}
	}

	tag := m.classify(ctx, ev, cur, ok)
	if tag == intent.Cancel {
		return m.cancel(ctx, ev, cur, ok)
	}
	if !ok {
		return m.handleIdle(ctx, ev, tag, welcomed)
	}

	if jt, has := tag.JobType(); has && (tag.IsSwitch() || tag.IsStart()) && jt != cur.JobType {
		return m.switchJob(ctx, ev, cur, jt)
	}
	if tag == intent.Help {
		if err := m.say(ctx, ev.ChatID, m.texts.Text(messages.Help)); err != nil {
			return err
		}
		return m.prompt(ctx, cur)
	}

	switch cur.State {
	case session.StateAwaitingSource:
		return m.handleAwaitingSource(ctx, ev, cur)
	case session.StateAwaitingTarget:
		return m.handleAwaitingTarget(ctx, ev, cur)
	case session.StateAwaitingOption:
		if err := m.say(ctx, ev.ChatID, m.texts.Text(messages.RepromptOption)); err != nil {
			return err
		}
		return m.prompt(ctx, cur)
	default:
		return fmt.Errorf("unhandled state %s", cur.State)
	}
}

func (m *Machine) classify(ctx context.Context, ev chat.Event, cur session.Session, ok bool) intent.Tag {
	text := strings.TrimSpace(ev.Text)
	if ev.HasMedia() {
		if ok || text == "" {
			return intent.ProvideMedia
		}
		// A caption on media sent while idle may still start a session.
		if tag := m.resolver.Classify(ctx, text, nil); tag.IsStart() || tag.IsSwitch() {
			return tag
		}
		return intent.ProvideMedia
	}
	if text == "" {
		return intent.Unknown
	}
	var current *session.Session
	if ok {
		current = &cur
	}
	return m.resolver.Classify(ctx, text, current)
}

func (m *Machine) onboard(ctx context.Context, ev chat.Event) bool {
	if m.registry == nil || m.registry.Has(ctx, ev.UserID) {
		return false
	}
	if err := m.registry.Record(ctx, ev.UserID, m.now()); err != nil {
		m.logger.Warn("flow_registry_record_error", "user_id", ev.UserID, "error", err.Error())
	}
	if err := m.say(ctx, ev.ChatID, m.texts.Text(messages.Welcome)); err != nil {
		m.logger.Warn("flow_welcome_error", "user_id", ev.UserID, "error", err.Error())
		return false
	}
	return true
}

func (m *Machine) handleIdle(ctx context.Context, ev chat.Event, tag intent.Tag, welcomed bool) error {
	if jt, ok := tag.JobType(); ok {
		s := session.Session{
			UserID:  ev.UserID,
			ChatID:  ev.ChatID,
			State:   session.StateAwaitingSource,
			JobType: jt,
			Steps:   m.stepsFor(jt),
		}
		if err := m.put(s, session.StateIdle); err != nil {
			return err
		}
		if err := m.say(ctx, ev.ChatID, m.texts.Text(messages.PromptSource, m.jobLabel(jt))); err != nil {
			return err
		}
		if ev.HasMedia() && ev.Media.ImageLike() {
			return m.handleAwaitingSource(ctx, ev, s)
		}
		return nil
	}

	switch tag {
	case intent.Help:
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.Help))
	case intent.ProvideMedia:
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.MediaWithoutSession))
	case intent.Chitchat:
		if welcomed {
			return nil
		}
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.Chitchat))
	default:
		if welcomed {
			return nil
		}
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.Unknown))
	}
}

func (m *Machine) handleAwaitingSource(ctx context.Context, ev chat.Event, cur session.Session) error {
	if !ev.HasMedia() || !ev.Media.ImageLike() {
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.RepromptSource))
	}
	path, err := m.persist(ctx, ev, mediacache.RoleSource)
	if err != nil {
		return err
	}
	cur.SourcePath = path
	cur.State = session.StateAwaitingTarget
	if err := m.put(cur, session.StateAwaitingSource); err != nil {
		_ = mediacache.Remove(path)
		return err
	}
	m.react(ctx, ev)
	return m.prompt(ctx, cur)
}

func (m *Machine) handleAwaitingTarget(ctx context.Context, ev chat.Event, cur session.Session) error {
	if !ev.HasMedia() || !mediaMatches(cur.JobType, ev.Media) {
		return m.say(ctx, ev.ChatID, m.texts.Text(targetReprompt(cur.JobType)))
	}
	path, err := m.persist(ctx, ev, mediacache.RoleTarget)
	if err != nil {
		return err
	}
	cur.TargetPath = path
	cur.OptionStep = 0
	m.react(ctx, ev)
	if len(cur.Steps) == 0 {
		return m.dispatch(ctx, cur, session.StateAwaitingTarget)
	}
	cur.State = session.StateAwaitingOption
	if err := m.put(cur, session.StateAwaitingTarget); err != nil {
		_ = mediacache.Remove(path)
		return err
	}
	return m.prompt(ctx, cur)
}

func (m *Machine) advanceOption(ctx context.Context, ev chat.Event, cur session.Session) error {
	cur.OptionStep++
	if cur.OptionStep >= len(cur.Steps) {
		return m.dispatch(ctx, cur, session.StateAwaitingOption)
	}
	if err := m.put(cur, session.StateAwaitingOption); err != nil {
		return err
	}
	return m.prompt(ctx, cur)
}

// switchJob changes the job type of an active session. A target collected
// for the old type no longer fits, so it is dropped along with the options.
func (m *Machine) switchJob(ctx context.Context, ev chat.Event, cur session.Session, to session.JobType) error {
	from := cur.State
	cur.JobType = to
	cur.Steps = m.stepsFor(to)
	cur.Options = session.Options{}
	cur.OptionStep = 0
	if cur.TargetPath != "" {
		if err := mediacache.Remove(cur.TargetPath); err != nil {
			m.logger.Warn("flow_target_cleanup_error", "user_id", cur.UserID, "error", err.Error())
		}
		cur.TargetPath = ""
	}
	if cur.SourcePath == "" {
		cur.State = session.StateAwaitingSource
	} else {
		cur.State = session.StateAwaitingTarget
	}
	if err := m.put(cur, from); err != nil {
		return err
	}
	if err := m.say(ctx, ev.ChatID, m.texts.Text(messages.Switched, m.jobLabel(to))); err != nil {
		return err
	}
	return m.prompt(ctx, cur)
}

func (m *Machine) cancel(ctx context.Context, ev chat.Event, cur session.Session, ok bool) error {
	if !ok {
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.NothingToCancel))
	}
	if cur.State == session.StateDispatched {
		return m.say(ctx, ev.ChatID, m.texts.Text(messages.Busy))
	}
	if err := mediacache.Remove(cur.SourcePath, cur.TargetPath); err != nil {
		m.logger.Warn("flow_cancel_cleanup_error", "user_id", cur.UserID, "error", err.Error())
	}
	m.store.Delete(cur.UserID)
	m.logger.Info("flow_transition", "user_id", cur.UserID, "from", cur.State.String(), "to", session.StateIdle.String(), "reason", "cancel")
	return m.say(ctx, ev.ChatID, m.texts.Text(messages.Cancelled))
}

func (m *Machine) dispatch(ctx context.Context, cur session.Session, from session.State) error {
	cur.State = session.StateDispatched
	cur.OutputPath = mediacache.ScopedPath(m.cacheDir, cur.UserID, mediacache.RoleOutput, filepath.Ext(cur.TargetPath))
	if err := m.put(cur, from); err != nil {
		_ = mediacache.Remove(cur.SourcePath, cur.TargetPath)
		m.store.Delete(cur.UserID)
		_ = m.say(ctx, cur.ChatID, m.texts.Text(messages.FailureGeneric))
		return err
	}

	status, err := m.notifier.Send(ctx, cur.ChatID, m.texts.Text(messages.StatusStarted, m.jobLabel(cur.JobType)))
	if err != nil {
		m.logger.Warn("flow_status_send_error", "user_id", cur.UserID, "error", err.Error())
		status = chat.MessageRef{}
	}
	job := jobrunner.JobFromSession(cur, cur.OutputPath, status)
	m.logger.Info("flow_dispatch", "user_id", cur.UserID, "job_id", job.ID, "job_type", cur.JobType.String())

	m.jobs.Add(1)
	go func() {
		defer m.jobs.Done()
		defer m.store.Delete(cur.UserID)
		defer func() {
			if rec := recover(); rec != nil {
				m.logger.Error("flow_job_panic", "user_id", cur.UserID, "job_id", job.ID, "panic", fmt.Sprint(rec))
			}
		}()
		res := m.runner.Run(ctx, job)
		attrs := []any{"user_id", cur.UserID, "job_id", job.ID, "outcome", res.Outcome.String(), "failure", res.Failure.String(), "duration", res.Duration.String()}
		if res.Err != nil {
			attrs = append(attrs, "error", res.Err.Error())
		}
		m.logger.Info("flow_job_finished", attrs...)
	}()
	return nil
}

// prompt re-asks whatever the session is currently waiting for.
func (m *Machine) prompt(ctx context.Context, cur session.Session) error {
	switch cur.State {
	case session.StateAwaitingSource:
		return m.say(ctx, cur.ChatID, m.texts.Text(messages.PromptSource, m.jobLabel(cur.JobType)))
	case session.StateAwaitingTarget:
		if cur.JobType == session.JobVideo {
			return m.say(ctx, cur.ChatID, m.texts.Text(messages.PromptTargetVideo))
		}
		return m.say(ctx, cur.ChatID, m.texts.Text(messages.PromptTargetImage))
	case session.StateAwaitingOption:
		if key, ok := cur.CurrentOption(); ok {
			return m.say(ctx, cur.ChatID, m.texts.Text(optionPrompt(key)))
		}
	}
	return nil
}

func (m *Machine) persist(ctx context.Context, ev chat.Event, role mediacache.Role) (string, error) {
	path := mediacache.ScopedPath(m.cacheDir, ev.UserID, role, mediacache.ExtForMedia(*ev.Media))
	n, err := m.fetcher.Fetch(ctx, *ev.Media, path)
	if err != nil {
		_ = mediacache.Remove(path)
		m.logger.Warn("flow_media_fetch_error", "user_id", ev.UserID, "role", string(role), "error", err.Error())
		if sayErr := m.say(ctx, ev.ChatID, m.texts.Text(messages.DownloadFailed)); sayErr != nil {
			return "", sayErr
		}
		return "", fmt.Errorf("fetch %s media: %w", role, err)
	}
	m.logger.Debug("flow_media_saved", "user_id", ev.UserID, "role", string(role), "bytes", n)
	return path, nil
}

func (m *Machine) put(s session.Session, from session.State) error {
	if err := m.store.Put(s); err != nil {
		m.logger.Error("flow_store_error", "user_id", s.UserID, "state", s.State.String(), "error", err.Error())
		return err
	}
	if from != s.State {
		m.logger.Info("flow_transition", "user_id", s.UserID, "from", from.String(), "to", s.State.String(), "job_type", s.JobType.String())
	}
	return nil
}

func (m *Machine) say(ctx context.Context, chatID string, text string) error {
	if _, err := m.notifier.Send(ctx, chatID, text); err != nil {
		m.logger.Warn("flow_send_error", "chat_id", chatID, "error", err.Error())
		return err
	}
	return nil
}

func (m *Machine) react(ctx context.Context, ev chat.Event) {
	ref := ev.Ref()
	if ref.IsZero() {
		return
	}
	if err := m.notifier.React(ctx, ref, m.reaction); err != nil {
		m.logger.Debug("flow_react_error", "user_id", ev.UserID, "error", err.Error())
	}
}

func (m *Machine) stepsFor(jt session.JobType) []session.OptionKey {
	return append([]session.OptionKey(nil), m.steps[jt]...)
}

func (m *Machine) jobLabel(jt session.JobType) string {
	if jt == session.JobVideo {
		return m.texts.Text(messages.JobVideo)
	}
	return m.texts.Text(messages.JobImage)
}

func mediaMatches(jt session.JobType, media *chat.Media) bool {
	if jt == session.JobVideo {
		return media.VideoLike()
	}
	return media.ImageLike()
}

func targetReprompt(jt session.JobType) messages.Key {
	if jt == session.JobVideo {
		return messages.RepromptTargetVideo
	}
	return messages.RepromptTargetImage
}
