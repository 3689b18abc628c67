package main

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/kinship/internal/llm"
	"github.com/cognicore/kinship/pkg/kinship"
	"github.com/cognicore/kinship/pkg/kinship/answer"
	"github.com/cognicore/kinship/pkg/kinship/config"
	"github.com/cognicore/kinship/pkg/kinship/inference/prolog"
	"github.com/cognicore/kinship/pkg/kinship/intent"
	"github.com/cognicore/kinship/pkg/kinship/kb"
	"github.com/cognicore/kinship/pkg/kinship/store"
	"github.com/cognicore/kinship/pkg/kinship/store/memstore"
	"github.com/cognicore/kinship/pkg/kinship/store/sqlite"
)

var errNoModel = errors.New("language model not configured for this command")

// openGenerator is replaced in tests.
var openGenerator = func(ctx context.Context, c config.Config) (llm.Generator, error) {
	if err := c.RequireCredentials(); err != nil {
		return nil, err
	}
	return llm.Open(ctx, llm.Options{
		Provider:   c.LLM.Provider,
		Model:      c.LLM.Model,
		BaseURL:    c.LLM.BaseURL,
		APIKey:     c.APIKey(),
		HTTPClient: &http.Client{Timeout: c.LLM.Timeout},
	})
}

// buildApp wires the facade from cfg. withModel is false for commands that
// only touch the fact file and the journal, so they run without
// credentials. The fact file is loaded eagerly: a missing file is fatal.
func buildApp(ctx context.Context, c config.Config, withModel bool) (*kinship.Kinship, func(), error) {
	engine, err := prolog.New()
	if err != nil {
		return nil, nil, errors.Wrap(err, "create engine")
	}
	rules := prolog.FamilyRules
	extra, err := c.ExtraRules()
	if err != nil {
		return nil, nil, err
	}
	if extra != "" {
		rules += "\n" + extra
	}

	session := kb.New(kb.Options{
		Candidates: c.Candidates(),
		Engine:     engine,
		Rules:      rules,
		Timeout:    c.Engine.Timeout,
		Logger:     logger,
	})
	if err := session.Load(ctx); err != nil {
		return nil, nil, err
	}
	logger.Debug("fact file loaded",
		zap.String("path", session.Path()),
		zap.Int("skipped", session.Skipped()),
		zap.Int("invalid", session.Rejected()))

	var gen llm.Generator = llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errNoModel
	})
	var phrasing answer.Generator
	if withModel {
		gen, err = openGenerator(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		phrasing = gen
	}

	extractor, err := intent.NewExtractor(gen, intent.Options{
		CacheSize: c.Intent.CacheSize,
		Timeout:   c.LLM.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}

	journal, err := openJournal(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	app, err := kinship.New(kinship.Options{
		Session: session,
		Intents: extractor,
		Answers: answer.NewWriter(phrasing, c.LLM.Timeout, logger),
		Journal: journal,
		Logger:  logger,
	})
	if err != nil {
		journal.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := app.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		}
	}
	return app, cleanup, nil
}

func openJournal(ctx context.Context, c config.Config) (store.Store, error) {
	if c.Journal.Driver == config.JournalMemory {
		return memstore.New(), nil
	}
	st, err := sqlite.OpenSQLite(ctx, c.Journal.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	return st, nil
}
