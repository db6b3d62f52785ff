package sync

import "time"

// Config параметры движка синхронизации
type Config struct {
	ForegroundInterval time.Duration // приложение активно и пользователь недавно действовал
	BackgroundInterval time.Duration // приложение в фоне
	IdleInterval       time.Duration // пользователь бездействует дольше IdleAfter
	IdleAfter          time.Duration

	FailurePenalty float64 // прибавка к множителю интервала за каждую ошибку подряд
	MaxPenalty     float64 // верхняя граница множителя

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
	BackoffJitter     float64 // RandomizationFactor, 0 отключает разброс
	MaxRetries        int     // повторов с backoff на один цикл

	RefreshMinSpacing time.Duration // минимальный интервал между ручными обновлениями
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		ForegroundInterval: 5 * time.Second,
		BackgroundInterval: 30 * time.Second,
		IdleInterval:       2 * time.Minute,
		IdleAfter:          5 * time.Minute,
		FailurePenalty:     0.5,
		MaxPenalty:         4,
		BackoffInitial:     time.Second,
		BackoffMax:         30 * time.Second,
		BackoffMultiplier:  2,
		BackoffJitter:      0.3,
		MaxRetries:         5,
		RefreshMinSpacing:  2 * time.Second,
	}
}
