package odds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

// snapshotTTL expira odds paradas; a grade muda a cada minuto perto do
// fechamento das apostas.
const snapshotTTL = 2 * time.Minute

// ErrSnapshotMiss indica que não há snapshot fresco para a corrida.
var ErrSnapshotMiss = errors.New("odds snapshot not cached")

// Cache guarda o último snapshot de odds por corrida no Redis e propaga
// cada atualização num canal pub/sub para consumidores em tempo real.
type Cache struct {
	rdb     *redis.Client
	channel string
}

func NewCache(rdb *redis.Client, channel string) *Cache {
	return &Cache{rdb: rdb, channel: channel}
}

func snapshotKey(venue string, raceNo int) string {
	return fmt.Sprintf("odds:current:%s:%d", venue, raceNo)
}

// Store grava o snapshot com TTL e publica no canal de broadcast. A falha do
// publish não invalida o cache.
func (c *Cache) Store(ctx context.Context, snap events.OddsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.Venue, snap.RaceNo), payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("cache odds snapshot: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.channel, payload).Err(); err != nil {
		return fmt.Errorf("broadcast odds snapshot: %w", err)
	}
	return nil
}

// Load devolve o último snapshot da corrida; ErrSnapshotMiss quando expirado
// ou nunca buscado.
func (c *Cache) Load(ctx context.Context, venue string, raceNo int) (events.OddsSnapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(venue, raceNo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return events.OddsSnapshot{}, ErrSnapshotMiss
	}
	if err != nil {
		return events.OddsSnapshot{}, fmt.Errorf("load odds snapshot: %w", err)
	}
	var snap events.OddsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return events.OddsSnapshot{}, fmt.Errorf("decode odds snapshot: %w", err)
	}
	return snap, nil
}

// Subscribe abre a assinatura do canal de broadcast; quem chama consome
// sub.Channel() e fecha ao terminar.
func (c *Cache) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, c.channel)
}
