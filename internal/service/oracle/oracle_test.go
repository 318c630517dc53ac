package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbattle/quizbattle-api/internal/config"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

func newDisabledService(seed int64) *Service {
	return NewService(config.OracleConfig{Enabled: false}, rand.New(rand.NewSource(seed)))
}

// completionContent упаковывает произвольный JSON в ответ chat/completions.
func completionContent(t *testing.T, body interface{}) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	payload := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": string(raw)}},
		},
	}
	out, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(out)
}

func TestFetch_RejectsNonPositiveCount(t *testing.T) {
	svc := newDisabledService(1)

	_, err := svc.Fetch(context.Background(), "История", "medium", 0)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFetch_DisabledRemoteUsesFallbackPool(t *testing.T) {
	svc := newDisabledService(42)

	items, err := svc.Fetch(context.Background(), "Кино", "easy", 10)

	require.NoError(t, err)
	require.Len(t, items, 10)
	for _, item := range items {
		assert.NotEmpty(t, item.Text)
		assert.Len(t, item.Options, 4)
		assert.GreaterOrEqual(t, item.CorrectOption, 1)
		assert.LessOrEqual(t, item.CorrectOption, 4)
	}

	// Пока в пуле есть неиспользованные тексты, повторов быть не должно.
	seen := make(map[string]int)
	for _, item := range items {
		seen[item.Text]++
	}
	assert.Len(t, seen, len(fallbackPool), "пул должен быть выбран полностью до повторов")
}

func TestFetch_FallbackSmallCountHasNoDuplicates(t *testing.T) {
	svc := newDisabledService(7)

	items, err := svc.Fetch(context.Background(), "Спорт", "hard", 5)

	require.NoError(t, err)
	require.Len(t, items, 5)
	seen := make(map[string]struct{})
	for _, item := range items {
		_, dup := seen[item.Text]
		assert.False(t, dup, "текст %q не должен повторяться", item.Text)
		seen[item.Text] = struct{}{}
	}
}

func TestFetch_RemoteSuccess(t *testing.T) {
	// Arrange: поддельный OAuth и генератор.
	generated := []GeneratedQuestion{
		{Text: "Столица Франции?", Options: []string{"Париж", "Лион", "Марсель", "Ницца"}, CorrectOption: 1},
		{Text: "Столица Италии?", Options: []string{"Милан", "Рим", "Турин", "Неаполь"}, CorrectOption: 2},
	}

	var authCalls, chatCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&authCalls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		fmt.Fprintf(w, `{"access_token":"tok-123","expires_at":%d}`, time.Now().Add(time.Hour).UnixMilli())
	})
	mux.HandleFunc("/api/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatCalls, 1)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, completionContent(t, generated))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewService(config.OracleConfig{
		Enabled: true,
		AuthKey: "secret-key",
		AuthURL: server.URL + "/oauth",
		APIURL:  server.URL + "/api/v1",
		Scope:   "GIGACHAT_API_PERS",
		Model:   "GigaChat",
		Timeout: 5 * time.Second,
	}, rand.New(rand.NewSource(1)))

	// Act
	items, err := svc.Fetch(context.Background(), "География", "medium", 2)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, generated, items)
	assert.Equal(t, int32(1), atomic.LoadInt32(&authCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&chatCalls))
}

func TestFetch_RemoteInvalidItemsFallsBack(t *testing.T) {
	// Генератор стабильно отдает мусор: мало вариантов, номер вне диапазона,
	// дубль текста. Валидных не хватает — после трех попыток идет пул.
	broken := []GeneratedQuestion{
		{Text: "Только три варианта", Options: []string{"а", "б", "в"}, CorrectOption: 1},
		{Text: "Номер вне диапазона", Options: []string{"а", "б", "в", "г"}, CorrectOption: 5},
		{Text: "Дубль", Options: []string{"а", "б", "в", "г"}, CorrectOption: 1},
		{Text: "Дубль", Options: []string{"а", "б", "в", "г"}, CorrectOption: 2},
	}

	var authCalls, chatCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&authCalls, 1)
		fmt.Fprintf(w, `{"access_token":"tok","expires_at":%d}`, time.Now().Add(time.Hour).UnixMilli())
	})
	mux.HandleFunc("/api/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatCalls, 1)
		fmt.Fprint(w, completionContent(t, broken))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := NewService(config.OracleConfig{
		Enabled: true,
		AuthKey: "secret-key",
		AuthURL: server.URL + "/oauth",
		APIURL:  server.URL + "/api/v1",
		Timeout: 5 * time.Second,
	}, rand.New(rand.NewSource(3)))

	items, err := svc.Fetch(context.Background(), "Музыка", "easy", 4)

	require.NoError(t, err)
	require.Len(t, items, 4)
	// Токен закеширован: один OAuth на три попытки генерации.
	assert.Equal(t, int32(1), atomic.LoadInt32(&authCalls))
	assert.Equal(t, int32(3), atomic.LoadInt32(&chatCalls))
	for _, item := range items {
		assert.Len(t, item.Options, 4)
	}
}

func TestParseGeneratedContent_StripsMarkdownFence(t *testing.T) {
	content := "```json\n[{\"text\":\"Вопрос?\",\"options\":[\"1\",\"2\",\"3\",\"4\"],\"correct_option\":3}]\n```"

	items, err := parseGeneratedContent(content)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Вопрос?", items[0].Text)
	assert.Equal(t, 3, items[0].CorrectOption)
}

func TestValidateGenerated_FiltersBadItems(t *testing.T) {
	items := []GeneratedQuestion{
		{Text: "  Нормальный вопрос  ", Options: []string{"а", "б", "в", "г"}, CorrectOption: 4},
		{Text: "", Options: []string{"а", "б", "в", "г"}, CorrectOption: 1},
		{Text: "Мало вариантов", Options: []string{"а"}, CorrectOption: 1},
		{Text: "Нормальный вопрос", Options: []string{"а", "б", "в", "г"}, CorrectOption: 2},
	}

	valid := validateGenerated(items)

	require.Len(t, valid, 1)
	assert.Equal(t, "Нормальный вопрос", valid[0].Text, "текст должен быть обрезан от пробелов")
	assert.Equal(t, 4, valid[0].CorrectOption)
}
