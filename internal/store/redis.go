package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisStream is the stream key records are appended to.
const DefaultRedisStream = "localchat:records"

// RedisStreamDB is a DocumentDB over a redis stream. XADD assigns the entry
// id; the record id and metadata travel as stream fields.
type RedisStreamDB struct {
	client *redis.Client
	stream string
}

var _ DocumentDB = (*RedisStreamDB)(nil)

func NewRedisStreamDB(ctx context.Context, addr, stream string) (*RedisStreamDB, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis store: empty address")
	}
	if stream == "" {
		stream = DefaultRedisStream
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis store: ping")
	}
	return &RedisStreamDB{client: client, stream: stream}, nil
}

func (r *RedisStreamDB) Name() string {
	return "redis"
}

func (r *RedisStreamDB) InsertOne(ctx context.Context, rec Record) error {
	m := rec.Metadata
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		ID:     "*",
		Values: map[string]interface{}{
			FieldID:        rec.ID,
			FieldDocument:  rec.Document,
			FieldRole:      string(m.Role),
			FieldModel:     m.Model,
			FieldTimestamp: m.Timestamp,
			FieldSeq:       m.Seq,
			FieldSession:   m.Session,
			FieldSource:    m.Source,
		},
	}).Err()
}

// Find reads the whole stream. Stream order is insertion order, so the sort
// only has to honour the requested fields.
func (r *RedisStreamDB) Find(ctx context.Context, sortBy ...string) ([]Record, error) {
	msgs, err := r.client.XRange(ctx, r.stream, "-", "+").Result()
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := recordFromValues(msg.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "redis store: entry %s", msg.ID)
		}
		out = append(out, rec)
	}

	for _, field := range sortBy {
		if field != FieldTimestamp && field != FieldSeq {
			return nil, errors.Errorf("redis store: cannot sort by %q", field)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, field := range sortBy {
			a, b := sortKey(out[i], field), sortKey(out[j], field)
			if a != b {
				return a < b
			}
		}
		return false
	})
	return out, nil
}

func (r *RedisStreamDB) Close() error {
	return r.client.Close()
}

func sortKey(rec Record, field string) int64 {
	if field == FieldSeq {
		return rec.Metadata.Seq
	}
	return rec.Metadata.Timestamp
}

func recordFromValues(values map[string]interface{}) (Record, error) {
	str := func(key string) string {
		v, ok := values[key]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	num := func(key string) (int64, error) {
		n, err := strconv.ParseInt(str(key), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "field %s", key)
		}
		return n, nil
	}

	ts, err := num(FieldTimestamp)
	if err != nil {
		return Record{}, err
	}
	seq, err := num(FieldSeq)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:       str(FieldID),
		Document: str(FieldDocument),
		Metadata: Metadata{
			Role:      conversation.Role(str(FieldRole)),
			Model:     str(FieldModel),
			Timestamp: ts,
			Seq:       seq,
			Session:   str(FieldSession),
			Source:    str(FieldSource),
		},
	}, nil
}
