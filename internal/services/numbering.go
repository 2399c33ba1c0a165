package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"custody-system/internal/repositories"
)

// RequestNumberServiceInterface выдаёт номера заявок вида PREFIX-YYYYMMDD-NNNN.
type RequestNumberServiceInterface interface {
	Next(ctx context.Context) string
}

type RequestNumberService struct {
	cache      repositories.CacheRepositoryInterface
	logger     *zap.Logger
	prefix     string
	counterTTL time.Duration
	now        func() time.Time
}

func NewRequestNumberService(
	cache repositories.CacheRepositoryInterface,
	logger *zap.Logger,
	prefix string,
	counterTTL time.Duration,
) RequestNumberServiceInterface {
	return &RequestNumberService{
		cache:      cache,
		logger:     logger,
		prefix:     prefix,
		counterTTL: counterTTL,
		now:        time.Now,
	}
}

// Next возвращает следующий номер. Суточный счётчик инкрементируется атомарно
// на стороне Redis: читать максимум и прибавлять единицу двумя шагами нельзя,
// два конкурентных вызова получили бы одинаковый номер.
// При любой ошибке счётчика метод деградирует до резервной схемы
// (метка времени плюс случайный суффикс) и никогда не проваливает
// создание заявки.
func (s *RequestNumberService) Next(ctx context.Context) string {
	now := s.now()
	day := now.Format("20060102")
	key := fmt.Sprintf("reqnum:%s", day)

	seq, err := s.cache.Incr(ctx, key)
	if err != nil {
		s.logger.Warn("счётчик номеров недоступен, используется резервная схема", zap.Error(err))
		return s.fallback(now)
	}

	// Первый номер дня: ограничиваем время жизни ключа, чтобы счётчики
	// прошедших дней не копились в Redis.
	if seq == 1 {
		if _, err := s.cache.Expire(ctx, key, s.counterTTL); err != nil {
			s.logger.Warn("не удалось установить TTL суточного счётчика", zap.String("key", key), zap.Error(err))
		}
	}

	return fmt.Sprintf("%s-%s-%04d", s.prefix, day, seq)
}

func (s *RequestNumberService) fallback(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s-%s", s.prefix, now.Format("20060102"), now.Format("150405"), suffix)
}
