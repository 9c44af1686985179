package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bestiary-server/internal/config"
	"bestiary-server/internal/mocks"
	"bestiary-server/internal/models"
	"bestiary-server/internal/schemas"
	"bestiary-server/internal/service"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake-image-data")

const (
	transientURL = "https://images.example.com/tmp/abc.png"
	storedURL    = "https://cdn.example.com/bestiary/Monsters/abc.png"
)

var ashfangBrief = models.CreatureBrief{
	Name:            "Ashfang",
	Type:            "dragon",
	ChallengeRating: "10",
	ArmorClass:      "18",
	Environment:     "volcanic",
	Resistances:     "fire",
}

type pipelineMocks struct {
	text    *mocks.MockTextGenerator
	image   *mocks.MockImageGenerator
	fetcher *mocks.MockImageFetcher
	store   *mocks.MockAssetStore
	repo    *mocks.MockMonsterRepository
	orphans *mocks.MockOrphanReporter
}

func newTestPipeline(t *testing.T, timeouts service.StageTimeouts) (*service.Pipeline, pipelineMocks) {
	t.Helper()
	m := pipelineMocks{
		text:    mocks.NewMockTextGenerator(t),
		image:   mocks.NewMockImageGenerator(t),
		fetcher: mocks.NewMockImageFetcher(t),
		store:   mocks.NewMockAssetStore(t),
		repo:    mocks.NewMockMonsterRepository(t),
		orphans: mocks.NewMockOrphanReporter(t),
	}
	logger := zap.NewNop()
	aiCfg := config.AIConfig{Temperature: 0.78, TopP: 1, MaxCompletionTokens: 2048}

	p := service.NewPipeline(
		service.NewCreatureSynthesizer(m.text, aiCfg, logger),
		service.NewIllustrationSynthesizer(m.image, m.fetcher, "", logger),
		service.NewAssetIngestor(m.store, "Monsters", logger),
		m.repo,
		m.orphans,
		timeouts,
		logger,
	)
	return p, m
}

// creatureJSON возвращает корректный ответ модели для существа с указанным именем.
func creatureJSON(t *testing.T, name string) string {
	t.Helper()
	payload := make(map[string]interface{})
	for _, f := range schemas.Fields() {
		if f.Kind == schemas.KindInteger {
			payload[f.Name] = 15
		} else {
			payload[f.Name] = "some " + f.Name
		}
	}
	payload["name"] = name
	payload["size"] = "Huge"
	payload["creature_type"] = "dragon"
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func isMonstersKey(key string) bool {
	return strings.HasPrefix(key, "Monsters/") && strings.HasSuffix(key, ".png")
}

func TestPipeline_Generate_Success(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	principal := models.Principal{ID: 7}

	m.text.On("GenerateStructured", mock.Anything, mock.MatchedBy(func(req service.StructuredRequest) bool {
		return req.SchemaName == schemas.CreatureSchemaName &&
			req.Temperature == 0.78 && req.TopP == 1 && req.MaxTokens == 2048 &&
			strings.Contains(req.UserPrompt, "Ashfang") &&
			strings.Contains(req.UserPrompt, "volcanic")
	})).Return(creatureJSON(t, "Ashfang"), service.UsageInfo{TotalTokens: 900}, nil).Once()

	m.image.On("GenerateImage", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "called Ashfang") && strings.Contains(prompt, "Huge dragon")
	}), "1024x1024").Return(transientURL, nil).Once()

	m.fetcher.On("Fetch", mock.Anything, transientURL).
		Return(&models.IllustrationPayload{Data: pngBytes, ContentType: "image/png"}, nil).Once()

	m.store.On("Upload", mock.Anything, mock.MatchedBy(isMonstersKey), pngBytes, "image/png").
		Return(storedURL, nil).Once()

	created := &models.Monster{ID: 42, UserID: 7, ImageURL: storedURL, CreatedAt: time.Now()}
	m.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.CreatureRecord) bool {
		return r.Name == "Ashfang" && r.CreatureType == "dragon"
	}), storedURL, uint64(7)).Return(created, nil).Once()

	monster, err := p.Generate(context.Background(), principal, ashfangBrief, "req-1")
	require.NoError(t, err)
	if diff := cmp.Diff(created, monster); diff != "" {
		t.Errorf("unexpected monster (-want +got):\n%s", diff)
	}
}

func TestPipeline_Generate_TextFailuresStopBeforeImage(t *testing.T) {
	cases := []struct {
		name    string
		content string
		err     error
	}{
		{name: "empty content", content: ""},
		{name: "not json", content: "Here is your monster: a big dragon"},
		{name: "missing fields", content: `{"name":"Ashfang"}`},
		{name: "remote error", err: errors.New("429 rate limited")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, m := newTestPipeline(t, service.StageTimeouts{})
			m.text.On("GenerateStructured", mock.Anything, mock.Anything).
				Return(tc.content, service.UsageInfo{}, tc.err).Once()

			monster, err := p.Generate(context.Background(), models.Principal{ID: 1}, ashfangBrief, "")
			assert.Nil(t, monster)
			require.ErrorIs(t, err, models.ErrUpstreamGeneration)

			var genErr *service.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "synthesize", genErr.Stage)
			assert.Equal(t, service.StateReceived, genErr.State)
			assert.Equal(t, "upstream_generation", genErr.Kind())

			m.image.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPipeline_Generate_ImageFailure(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Once()
	m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").
		Return("", errors.New("content policy violation")).Once()

	_, err := p.Generate(context.Background(), models.Principal{ID: 1}, ashfangBrief, "")
	require.ErrorIs(t, err, models.ErrUpstreamImage)
	m.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestPipeline_Generate_FetchFailureWritesNoRow(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Once()
	m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").Return(transientURL, nil).Once()
	m.fetcher.On("Fetch", mock.Anything, transientURL).Return(nil, errors.New("unexpected status 403")).Once()

	_, err := p.Generate(context.Background(), models.Principal{ID: 1}, ashfangBrief, "")
	require.ErrorIs(t, err, models.ErrAssetFetch)

	var genErr *service.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "illustrate", genErr.Stage)
	m.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Generate_UploadFailure(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Once()
	m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").Return(transientURL, nil).Once()
	m.fetcher.On("Fetch", mock.Anything, transientURL).
		Return(&models.IllustrationPayload{Data: pngBytes}, nil).Once()
	m.store.On("Upload", mock.Anything, mock.Anything, pngBytes, "image/png").
		Return("", errors.New("bucket unavailable")).Once()

	_, err := p.Generate(context.Background(), models.Principal{ID: 1}, ashfangBrief, "")
	require.ErrorIs(t, err, models.ErrAssetUpload)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.orphans.AssertNotCalled(t, "ReportOrphan", mock.Anything, mock.Anything)
}

func TestPipeline_Generate_PersistenceFailureReportsOrphan(t *testing.T) {
	for _, reportErr := range []error{nil, errors.New("broker down")} {
		p, m := newTestPipeline(t, service.StageTimeouts{OrphanReport: time.Second})
		m.text.On("GenerateStructured", mock.Anything, mock.Anything).
			Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Once()
		m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").Return(transientURL, nil).Once()
		m.fetcher.On("Fetch", mock.Anything, transientURL).
			Return(&models.IllustrationPayload{Data: pngBytes}, nil).Once()
		m.store.On("Upload", mock.Anything, mock.MatchedBy(isMonstersKey), pngBytes, "image/png").
			Return(storedURL, nil).Once()
		m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(9)).
			Return(nil, errors.New("connection reset")).Once()
		m.repo.On("ImageReferenced", mock.Anything, storedURL).Return(false, nil).Once()
		m.orphans.On("ReportOrphan", mock.Anything, mock.MatchedBy(func(e models.OrphanedAssetEvent) bool {
			return isMonstersKey(e.Key) && e.URL == storedURL && e.UserID == 9 && e.RequestID == "req-9"
		})).Return(reportErr).Once()

		monster, err := p.Generate(context.Background(), models.Principal{ID: 9}, ashfangBrief, "req-9")
		assert.Nil(t, monster)
		require.ErrorIs(t, err, models.ErrPersistence)

		var genErr *service.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "persist", genErr.Stage)
		assert.Equal(t, service.StateIngested, genErr.State)
	}
}

// expectUploadedAsset настраивает успешные стадии до записи в БД.
func expectUploadedAsset(t *testing.T, m pipelineMocks) {
	t.Helper()
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Once()
	m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").Return(transientURL, nil).Once()
	m.fetcher.On("Fetch", mock.Anything, transientURL).
		Return(&models.IllustrationPayload{Data: pngBytes}, nil).Once()
	m.store.On("Upload", mock.Anything, mock.MatchedBy(isMonstersKey), pngBytes, "image/png").
		Return(storedURL, nil).Once()
}

func TestPipeline_Generate_PersistTimeoutKeepsAsset(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{Persist: 20 * time.Millisecond, OrphanReport: time.Second})
	expectUploadedAsset(t, m)

	// Строка успевает попасть в БД, а драйвер возвращает ошибку контекста
	var saved []string
	m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(4)).
		Run(func(args mock.Arguments) {
			saved = append(saved, args.String(2))
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, fmt.Errorf("%w: %v", models.ErrPersistence, context.DeadlineExceeded)).Once()

	_, err := p.Generate(context.Background(), models.Principal{ID: 4}, ashfangBrief, "req-4")
	require.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, []string{storedURL}, saved)

	m.repo.AssertNotCalled(t, "ImageReferenced", mock.Anything, mock.Anything)
	m.orphans.AssertNotCalled(t, "ReportOrphan", mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestPipeline_Generate_ClientCancelDuringPersistKeepsAsset(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	expectUploadedAsset(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(4)).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	_, err := p.Generate(ctx, models.Principal{ID: 4}, ashfangBrief, "req-4")
	require.ErrorIs(t, err, models.ErrPersistence)
	m.orphans.AssertNotCalled(t, "ReportOrphan", mock.Anything, mock.Anything)
}

func TestPipeline_Generate_ReferencedAssetIsNotReported(t *testing.T) {
	cases := []struct {
		name       string
		referenced bool
		checkErr   error
	}{
		{name: "row exists despite error", referenced: true},
		{name: "reference check fails", checkErr: errors.New("pool closed")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, m := newTestPipeline(t, service.StageTimeouts{OrphanReport: time.Second})
			expectUploadedAsset(t, m)
			m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(4)).
				Return(nil, errors.New("unexpected EOF")).Once()
			m.repo.On("ImageReferenced", mock.Anything, storedURL).Return(tc.referenced, tc.checkErr).Once()

			_, err := p.Generate(context.Background(), models.Principal{ID: 4}, ashfangBrief, "req-4")
			require.ErrorIs(t, err, models.ErrPersistence)
			m.orphans.AssertNotCalled(t, "ReportOrphan", mock.Anything, mock.Anything)
		})
	}
}

func TestPipeline_Generate_StageTimeout(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{Synthesize: 20 * time.Millisecond})
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", service.UsageInfo{}, context.DeadlineExceeded).Once()

	start := time.Now()
	_, err := p.Generate(context.Background(), models.Principal{ID: 1}, ashfangBrief, "")
	require.ErrorIs(t, err, models.ErrUpstreamGeneration)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPipeline_Generate_NotIdempotent(t *testing.T) {
	p, m := newTestPipeline(t, service.StageTimeouts{})
	m.text.On("GenerateStructured", mock.Anything, mock.Anything).
		Return(creatureJSON(t, "Ashfang"), service.UsageInfo{}, nil).Twice()
	m.image.On("GenerateImage", mock.Anything, mock.Anything, "1024x1024").Return(transientURL, nil).Twice()
	m.fetcher.On("Fetch", mock.Anything, transientURL).
		Return(&models.IllustrationPayload{Data: pngBytes}, nil).Twice()
	m.store.On("Upload", mock.Anything, mock.MatchedBy(isMonstersKey), pngBytes, "image/png").
		Return(storedURL, nil).Twice()
	m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(3)).
		Return(&models.Monster{ID: 1, UserID: 3}, nil).Once()
	m.repo.On("Create", mock.Anything, mock.Anything, storedURL, uint64(3)).
		Return(&models.Monster{ID: 2, UserID: 3}, nil).Once()

	first, err := p.Generate(context.Background(), models.Principal{ID: 3}, ashfangBrief, "")
	require.NoError(t, err)
	second, err := p.Generate(context.Background(), models.Principal{ID: 3}, ashfangBrief, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
