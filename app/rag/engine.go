package rag

import (
	"context"
	"fmt"
	"time"

	"newsrag/app/agent"
	"newsrag/model"
	"newsrag/session"
	"newsrag/types"

	"github.com/sirupsen/logrus"
)

const DefaultHistoryWindow = 10

// Engine answers chat messages from indexed news and the session's history.
type Engine struct {
	embedder  model.EmbedderInterface
	index     Searcher
	history   session.Store
	generator agent.Generator

	strategy SearchStrategy
	window   int
	locks    *session.Locker
	now      session.Clock
	logger   *logrus.Entry
}

type Option func(*Engine)

func WithStrategy(s SearchStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

func WithHistoryWindow(n int) Option {
	return func(e *Engine) { e.window = n }
}

// WithLocker shares a per-session locker with other writers of the same
// history store.
func WithLocker(l *session.Locker) Option {
	return func(e *Engine) { e.locks = l }
}

func WithClock(c session.Clock) Option {
	return func(e *Engine) { e.now = c }
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(embedder model.EmbedderInterface, index Searcher, history session.Store, generator agent.Generator, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		index:     index,
		history:   history,
		generator: generator,
		strategy:  DefaultStrategy(3, 0.75, 5),
		window:    DefaultHistoryWindow,
		locks:     session.NewLocker(),
		now:       time.Now,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer produces the reply to message within the given session and records
// both turns in the session history. Any failure before a reply exists is
// returned as a QueryError. Failing to record the turns afterwards is only
// logged.
func (e *Engine) Answer(ctx context.Context, sessionID, message string) (string, error) {
	start := time.Now()
	received := e.now().UTC()
	log := e.logger.WithField("session_id", sessionID)

	vectors, err := e.embedder.Embed(ctx, []string{message})
	if err != nil {
		return "", types.NewQueryError("embed message", err)
	}
	if len(vectors) != 1 {
		return "", types.NewQueryError("embed message", fmt.Errorf("got %d vectors for one message", len(vectors)))
	}

	hits, stage, err := e.strategy.Run(ctx, e.index, vectors[0])
	if err != nil {
		return "", types.NewQueryError("search", err)
	}
	log.WithFields(logrus.Fields{"hits": len(hits), "stage": stage}).Debug("retrieved context")

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	history, err := e.history.Recent(ctx, sessionID, e.window)
	if err != nil {
		return "", types.NewQueryError("read history", err)
	}

	reply, err := e.generator.Generate(ctx, buildRequest(hits, history, message))
	if err != nil {
		return "", types.NewQueryError("generate", err)
	}

	e.record(ctx, log, sessionID,
		types.Message{Sender: types.SenderUser, Text: message, CreatedAt: received},
		types.Message{Sender: types.SenderBot, Text: reply, CreatedAt: e.now().UTC()},
	)

	log.WithField("took", time.Since(start).String()).Info("answered message")
	return reply, nil
}

// record appends the turns in order and stops at the first failure so a bot
// reply is never stored without its question.
func (e *Engine) record(ctx context.Context, log *logrus.Entry, sessionID string, msgs ...types.Message) {
	for _, m := range msgs {
		if err := e.history.Append(ctx, sessionID, m); err != nil {
			log.WithError(types.NewHistoryWriteError(sessionID, err)).
				WithField("sender", m.Sender).
				Error("failed to record turn, reply still returned")
			return
		}
	}
}

// History returns the whole log of a session, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	return e.history.Recent(ctx, sessionID, 0)
}

// ClearSession waits for in-flight answers on the session before deleting
// it.
func (e *Engine) ClearSession(ctx context.Context, sessionID string) error {
	unlock := e.locks.Lock(sessionID)
	defer unlock()
	return e.history.Clear(ctx, sessionID)
}
