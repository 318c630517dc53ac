package oracle

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizbattle/quizbattle-api/internal/config"
	apperrors "github.com/quizbattle/quizbattle-api/internal/pkg/errors"
)

// maxRemoteAttempts ограничивает число обращений к удаленному генератору
// до перехода на встроенный пул.
const maxRemoteAttempts = 3

// GeneratedQuestion — вопрос, прошедший валидацию формата.
// CorrectOption нумеруется с единицы (1..4); в ноль-базную форму
// его переводит игровой движок при записи колоды в БД.
type GeneratedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// Встроенный пул на случай недоступности или отключения генератора.
var fallbackPool = []GeneratedQuestion{
	{
		Text:          "Что из перечисленного является языком программирования?",
		Options:       []string{"HTTP", "Python", "SQLite", "CSS"},
		CorrectOption: 2,
	},
	{
		Text:          "Какой протокол обычно используется для веб-сокетов?",
		Options:       []string{"ws/wss", "ftp", "smtp", "ssh"},
		CorrectOption: 1,
	},
	{
		Text:          "Что делает база данных SQLite?",
		Options:       []string{"Рисует интерфейс", "Хранит данные", "Компилирует код", "Запускает браузер"},
		CorrectOption: 2,
	},
	{
		Text:          "Какой HTTP-метод обычно используется для создания ресурса?",
		Options:       []string{"GET", "PUT", "POST", "DELETE"},
		CorrectOption: 3,
	},
	{
		Text:          "Что из этого относится к фронтенду?",
		Options:       []string{"HTML", "SQL", "Linux kernel", "Docker image"},
		CorrectOption: 1,
	},
	{
		Text:          "Какой из вариантов описывает веб-фреймворк?",
		Options:       []string{"Каркас для приложений", "IDE", "СУБД", "Операционная система"},
		CorrectOption: 1,
	},
	{
		Text:          "Какой формат чаще всего используют для обмена данными в API?",
		Options:       []string{"JPEG", "JSON", "MP3", "PDF"},
		CorrectOption: 2,
	},
}

// Service запрашивает вопросы у удаленного генератора (GigaChat-совместимый
// OAuth + chat/completions) и валидирует их форму. При любом отказе отдает
// вопросы из встроенного пула, поэтому создание игры не зависит от сети.
type Service struct {
	cfg        config.OracleConfig
	httpClient *http.Client

	rndMu sync.Mutex
	rnd   *rand.Rand

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewService создает адаптер генератора. rnd используется для перемешивания
// встроенного пула; nil означает источник со случайным зерном.
func NewService(cfg config.OracleConfig, rnd *rand.Rand) *Service {
	client := &http.Client{Timeout: cfg.Timeout}
	if client.Timeout <= 0 {
		client.Timeout = 40 * time.Second
	}
	if cfg.SkipVerify {
		// Региональные сертификаты провайдера не всегда входят в системные корни.
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		cfg:        cfg,
		httpClient: client,
		rnd:        rnd,
	}
}

// Fetch возвращает ровно count валидных вопросов по теме и сложности.
// До maxRemoteAttempts попыток удаленной генерации, затем встроенный пул;
// наружу ошибка уходит только при некорректных аргументах.
func (s *Service) Fetch(ctx context.Context, topic, difficulty string, count int) ([]GeneratedQuestion, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", apperrors.ErrValidation)
	}

	if s.cfg.Enabled && strings.TrimSpace(s.cfg.AuthKey) != "" {
		for attempt := 1; attempt <= maxRemoteAttempts; attempt++ {
			items, err := s.fetchRemote(ctx, topic, difficulty, count)
			if err == nil {
				return items, nil
			}
			log.Printf("[Oracle] Remote generation attempt %d/%d failed: %v", attempt, maxRemoteAttempts, err)
			if ctx.Err() != nil {
				break
			}
		}
		log.Printf("[Oracle] Remote generation exhausted, using built-in pool for topic %q", topic)
	}

	return s.fromFallback(count), nil
}

func (s *Service) fetchRemote(ctx context.Context, topic, difficulty string, count int) ([]GeneratedQuestion, error) {
	token, err := s.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Сгенерируй вопросы для викторины. Верни только JSON-массив без markdown. "+
			"Тема: %s. Сложность: %s. Количество: %d. "+
			"Формат каждого элемента: "+
			`{"text":"...","options":["...","...","...","..."],"correct_option":1..4}. `+
			"correct_option — номер правильного ответа от 1 до 4.",
		topic, difficulty, count,
	)

	reqBody, err := json.Marshal(map[string]interface{}{
		"model":       s.cfg.Model,
		"temperature": 0.5,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.APIURL, "/")+"/chat/completions", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		// Протухший токен сбрасываем, чтобы следующая попытка запросила новый.
		if resp.StatusCode == http.StatusUnauthorized {
			s.tokenMu.Lock()
			s.accessToken = ""
			s.tokenMu.Unlock()
		}
		return nil, fmt.Errorf("completion status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	items, err := parseGeneratedContent(payload.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	valid := validateGenerated(items)
	if len(valid) < count {
		return nil, fmt.Errorf("only %d of %d generated questions passed validation", len(valid), count)
	}
	return valid[:count], nil
}

func (s *Service) ensureAccessToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	form := url.Values{}
	form.Set("scope", s.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create oauth request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.cfg.AuthKey)))
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("oauth status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode oauth response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("oauth response has no access token")
	}

	s.accessToken = payload.AccessToken
	// expires_at приходит в миллисекундах; минуту оставляем про запас.
	if payload.ExpiresAt > 0 {
		s.tokenExpiry = time.UnixMilli(payload.ExpiresAt).Add(-time.Minute)
	} else {
		s.tokenExpiry = time.Now().Add(25 * time.Minute)
	}
	return s.accessToken, nil
}

// parseGeneratedContent снимает markdown-ограждение, если модель его все же
// добавила, и разбирает JSON-массив.
func parseGeneratedContent(content string) ([]GeneratedQuestion, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var items []GeneratedQuestion
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}
	return items, nil
}

// validateGenerated отбрасывает элементы с пустым или повторяющимся текстом,
// неполным набором вариантов или номером ответа вне 1..4.
func validateGenerated(items []GeneratedQuestion) []GeneratedQuestion {
	seen := make(map[string]struct{}, len(items))
	valid := make([]GeneratedQuestion, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		if len(item.Options) != 4 {
			continue
		}
		if item.CorrectOption < 1 || item.CorrectOption > 4 {
			continue
		}
		seen[text] = struct{}{}
		item.Text = text
		valid = append(valid, item)
	}
	return valid
}

// fromFallback выдает count вопросов из встроенного пула: пул перемешивается,
// тексты не повторяются, пока есть неиспользованные, затем идут по кругу.
func (s *Service) fromFallback(count int) []GeneratedQuestion {
	pool := make([]GeneratedQuestion, len(fallbackPool))
	copy(pool, fallbackPool)

	s.rndMu.Lock()
	s.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.rndMu.Unlock()

	used := make(map[string]struct{}, count)
	result := make([]GeneratedQuestion, 0, count)
	for idx := 0; len(result) < count; idx++ {
		item := pool[idx%len(pool)]
		if _, ok := used[item.Text]; ok && len(used) < len(pool) {
			continue
		}
		used[item.Text] = struct{}{}
		result = append(result, item)
	}
	return result
}
